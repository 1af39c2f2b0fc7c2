// Package listing resolves the titles of marketplace listings that chat rooms
// point at. The tables are owned by the listing services.
package listing

import (
	"context"
	"errors"

	"marketchat/backend/internal/common"
	"marketchat/backend/internal/models"

	"gorm.io/gorm"
)

// Tables maps inquiry context types to the listing table holding their titles.
var Tables = map[models.ContextType]string{
	models.ContextMentoringInquiry: "mentorings",
	models.ContextFarmlandInquiry:  "farmlands",
	models.ContextJobInquiry:       "job_postings",
}

// Catalog looks listing titles up by id.
type Catalog struct {
	db     *gorm.DB
	tables map[models.ContextType]string
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db, tables: Tables}
}

// TitleFor returns the title of listing refID of the given context type.
func (c *Catalog) TitleFor(ctx context.Context, contextType models.ContextType, refID int64) (string, error) {
	table, ok := c.tables[contextType]
	if !ok {
		return "", common.InvalidArgument("context %s has no listing", contextType)
	}

	var row struct{ Title string }
	err := c.db.WithContext(ctx).Table(table).Select("title").Where("id = ?", refID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", common.NotFound("%s %d not found", table, refID)
	}
	if err != nil {
		return "", common.Internal(err, "load %s %d", table, refID)
	}
	return row.Title, nil
}

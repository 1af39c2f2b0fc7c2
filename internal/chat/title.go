package chat

import (
	"context"
	"log/slog"
	"strings"

	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/obs"
)

const maxTitleRunes = 255

// Titler derives room titles from the listing a room is about, or from the
// two participants' names. Any lookup failure yields the generic label.
type Titler struct {
	listings ListingCatalog
	identity Identity
	texts    *localization.Localizer
	lang     string
	log      *slog.Logger
}

func NewTitler(listings ListingCatalog, identity Identity, texts *localization.Localizer, lang string, logger *slog.Logger) *Titler {
	return &Titler{
		listings: listings,
		identity: identity,
		texts:    texts,
		lang:     lang,
		log:      obs.Or(logger).With("component", "titler"),
	}
}

// RoomTitle implements storage.TitleSource.
func (t *Titler) RoomTitle(ctx context.Context, contextType models.ContextType, refID *int64, creatorID, participantID int64) string {
	generic := t.texts.GetString(t.lang, "title.generic")

	if contextType.RequiresRef() {
		if refID == nil || t.listings == nil {
			return generic
		}
		title, err := t.listings.TitleFor(ctx, contextType, *refID)
		if err != nil || strings.TrimSpace(title) == "" {
			t.log.Warn("listing title unavailable", "context", contextType, "ref", *refID, "err", err)
			return generic
		}
		return truncateRunes(t.texts.Format(t.lang, "title."+string(contextType), strings.TrimSpace(title)), maxTitleRunes)
	}

	if t.identity == nil {
		return generic
	}
	a, errA := t.identity.Profile(ctx, creatorID)
	b, errB := t.identity.Profile(ctx, participantID)
	if errA != nil || errB != nil || a.DisplayName == "" || b.DisplayName == "" {
		return generic
	}
	return truncateRunes(t.texts.Format(t.lang, "title.pair", a.DisplayName, b.DisplayName), maxTitleRunes)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

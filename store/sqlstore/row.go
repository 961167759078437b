package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/unkn0wn-root/contentcache"
)

// row is one content item. Quiz and media are stored as JSON columns.
type row struct {
	bun.BaseModel `bun:"table:contents,alias:c"`

	ID        string                      `bun:"id,pk"`
	Title     string                      `bun:"title,notnull"`
	Summary   string                      `bun:"summary,notnull"`
	Body      string                      `bun:"body,notnull"`
	Quiz      []contentcache.QuizQuestion `bun:"quiz"`
	Notes     string                      `bun:"notes"`
	Media     []contentcache.MediaRef     `bun:"media"`
	CreatedAt time.Time                   `bun:"created_at,notnull"`
	UpdatedAt time.Time                   `bun:"updated_at,notnull"`
}

func (r row) item() contentcache.ContentItem {
	return contentcache.ContentItem{
		NativeID:  r.ID,
		ID:        r.ID,
		Title:     r.Title,
		Summary:   r.Summary,
		Body:      r.Body,
		Quiz:      r.Quiz,
		Notes:     r.Notes,
		Media:     r.Media,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromItem(it contentcache.ContentItem) row {
	return row{
		ID:        it.NativeID,
		Title:     it.Title,
		Summary:   it.Summary,
		Body:      it.Body,
		Quiz:      it.Quiz,
		Notes:     it.Notes,
		Media:     it.Media,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
}

func items(rows []row) []contentcache.ContentItem {
	out := make([]contentcache.ContentItem, len(rows))
	for i := range rows {
		out[i] = rows[i].item()
	}
	return out
}

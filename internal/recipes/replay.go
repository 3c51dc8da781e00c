package recipes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
)

const KindReplace = "recipes.replace"

// ReplacePayload carries the full recipe so replay is a swap, not a merge.
type ReplacePayload struct {
	ProductID uuid.UUID           `json:"product_id"`
	Lines     []models.RecipeLine `json:"lines"`
}

func RegisterReplayHandlers(reg *storesync.Registry, repo *Repository) {
	reg.Register(KindReplace, func(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error {
		var p ReplacePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", KindReplace, err)
		}
		return repo.WithTx(tx).Replace(ctx, p.ProductID, p.Lines)
	})
}

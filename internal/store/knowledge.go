package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// InsertKnowledge inserts a knowledge row.
func (s *Store) InsertKnowledge(ctx context.Context, content string, pinned bool, source models.KnowledgeSource) (*models.Knowledge, error) {
	now := formatTime(timeNow())
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge (id, content, pinned, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, content, boolToInt(pinned), string(source), now)
	if err != nil {
		return nil, translateErr(err, "insert knowledge")
	}
	createdAt, _ := parseTime(now)
	return &models.Knowledge{ID: id, Content: content, Pinned: pinned, Source: source, CreatedAt: createdAt}, nil
}

// ListPinnedKnowledge returns all pinned knowledge rows, newest first.
func (s *Store) ListPinnedKnowledge(ctx context.Context) ([]*models.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, pinned, source, created_at FROM knowledge WHERE pinned = 1 ORDER BY created_at DESC`)
	if err != nil {
		return nil, translateErr(err, "list pinned knowledge")
	}
	defer rows.Close()
	return scanKnowledge(rows)
}

// ListAutoKnowledge returns all source=auto (non-crystallized) rows.
func (s *Store) ListAutoKnowledge(ctx context.Context) ([]*models.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, pinned, source, created_at FROM knowledge WHERE source = ? ORDER BY created_at DESC`,
		string(models.KnowledgeAuto))
	if err != nil {
		return nil, translateErr(err, "list auto knowledge")
	}
	defer rows.Close()
	return scanKnowledge(rows)
}

// FindClosestKnowledge returns knowledge rows whose tokenized content
// overlaps the tokenized query by at least min(2, |query tokens|)
// tokens, ranked by overlap count descending.
func (s *Store) FindClosestKnowledge(ctx context.Context, query string) ([]*models.Knowledge, error) {
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return nil, nil
	}
	threshold := minInt(2, len(qTokens))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, pinned, source, created_at FROM knowledge ORDER BY created_at DESC`)
	if err != nil {
		return nil, translateErr(err, "scan knowledge for overlap")
	}
	all, err := scanKnowledge(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		k       *models.Knowledge
		overlap int
	}
	var hits []scored
	for _, k := range all {
		overlap := overlapCount(qTokens, tokenize(k.Content))
		if overlap >= threshold {
			hits = append(hits, scored{k, overlap})
		}
	}
	// selection sort by overlap desc (not stable: rows with equal overlap
	// may change order); result sets here are small
	for i := range hits {
		best := i
		for j := i + 1; j < len(hits); j++ {
			if hits[j].overlap > hits[best].overlap {
				best = j
			}
		}
		hits[i], hits[best] = hits[best], hits[i]
	}
	out := make([]*models.Knowledge, len(hits))
	for i, h := range hits {
		out[i] = h.k
	}
	return out, nil
}

// DeleteKnowledge removes a knowledge row by id.
func (s *Store) DeleteKnowledge(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return translateErr(err, "delete knowledge")
	}
	return nil
}

func scanKnowledge(rows *sql.Rows) ([]*models.Knowledge, error) {
	defer rows.Close()
	var out []*models.Knowledge
	for rows.Next() {
		var k models.Knowledge
		var pinned int
		var source, createdAt string
		if err := rows.Scan(&k.ID, &k.Content, &pinned, &source, &createdAt); err != nil {
			return nil, translateErr(err, "scan knowledge")
		}
		k.Pinned = pinned != 0
		k.Source = models.KnowledgeSource(source)
		var err error
		if k.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse knowledge created_at: %w", err))
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiveagent/hive/pkg/models"
)

// InsertEpisode appends an episode summary.
func (s *Store) InsertEpisode(ctx context.Context, content string) (*models.Episode, error) {
	now := formatTime(timeNow())
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO episodes (id, content, created_at) VALUES (?, ?, ?)`, id, content, now)
	if err != nil {
		return nil, translateErr(err, "insert episode")
	}
	createdAt, _ := parseTime(now)
	return &models.Episode{ID: id, Content: content, CreatedAt: createdAt}, nil
}

// FindRelevantEpisodes returns up to limit episodes ranked by token
// overlap against query, tie-broken by recency (most recent first).
func (s *Store) FindRelevantEpisodes(ctx context.Context, query string, limit int) ([]*models.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, created_at FROM episodes ORDER BY created_at DESC`)
	if err != nil {
		return nil, translateErr(err, "scan episodes")
	}
	defer rows.Close()

	type scored struct {
		e       *models.Episode
		overlap int
		idx     int // position in recency order, smaller = more recent
	}
	qTokens := tokenize(query)
	var all []scored
	idx := 0
	for rows.Next() {
		var e models.Episode
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Content, &createdAt); err != nil {
			return nil, translateErr(err, "scan episode")
		}
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse episode created_at: %w", err))
		}
		all = append(all, scored{&e, overlapCount(qTokens, tokenize(e.Content)), idx})
		idx++
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err, "iterate episodes")
	}

	for i := range all {
		best := i
		for j := i + 1; j < len(all); j++ {
			if all[j].overlap > all[best].overlap ||
				(all[j].overlap == all[best].overlap && all[j].idx < all[best].idx) {
				best = j
			}
		}
		all[i], all[best] = all[best], all[i]
	}

	if limit > len(all) {
		limit = len(all)
	}
	out := make([]*models.Episode, limit)
	for i := 0; i < limit; i++ {
		out[i] = all[i].e
	}
	return out, nil
}

// RecentEpisodes returns up to limit episodes, most recent first, with no
// relevance ranking — used by crystallization, which summarizes whatever
// was just said rather than what's topically related to it.
func (s *Store) RecentEpisodes(ctx context.Context, limit int) ([]*models.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, created_at FROM episodes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, translateErr(err, "scan episodes")
	}
	defer rows.Close()

	var out []*models.Episode
	for rows.Next() {
		var e models.Episode
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Content, &createdAt); err != nil {
			return nil, translateErr(err, "scan episode")
		}
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, models.Wrap(models.KindStoreCorrupt, fmt.Errorf("parse episode created_at: %w", err))
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err, "iterate episodes")
	}
	return out, nil
}

// ClearEpisodes deletes all episodes (backing /clear).
func (s *Store) ClearEpisodes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM episodes`)
	return translateErr(err, "clear episodes")
}

// CountEpisodes returns the total number of stored episodes, used by the
// daemon's status report.
func (s *Store) CountEpisodes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`).Scan(&n)
	return n, translateErr(err, "count episodes")
}

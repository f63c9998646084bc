package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

// PalaceSummary is a palace listing row.
type PalaceSummary struct {
	Name      string    `json:"name"`
	Theme     string    `json:"theme,omitempty"`
	Loci      int       `json:"loci"`
	Memories  int       `json:"memories"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavePalace stores p, replacing any palace with the same name along with
// all of its loci and memories.
func (db *DB) SavePalace(p *palace.Palace) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("save palace: %w", err)
	}

	now := time.Now().UnixMilli()
	created := now
	if !p.Created.IsZero() {
		created = p.Created.UnixMilli()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save palace: %w", err)
	}
	defer tx.Rollback()

	var palaceID int64
	err = tx.QueryRow(`
		INSERT INTO palaces (name, theme, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET theme = excluded.theme, updated_at = excluded.updated_at
		RETURNING id
	`, p.Name, p.Theme, created, now).Scan(&palaceID)
	if err != nil {
		return fmt.Errorf("upsert palace: %w", err)
	}

	// Foreign key enforcement is per connection, so don't rely on cascades.
	if _, err := tx.Exec(`DELETE FROM memories WHERE palace_id = ?`, palaceID); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM loci WHERE palace_id = ?`, palaceID); err != nil {
		return fmt.Errorf("clear loci: %w", err)
	}

	for i, l := range p.Loci {
		children, err := json.Marshal(nonNil(l.Children))
		if err != nil {
			return fmt.Errorf("marshal children of %s: %w", l.ID, err)
		}
		res, err := tx.Exec(`
			INSERT INTO loci (palace_id, locus_key, name, anchor, children, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, palaceID, l.ID, l.Name, l.Anchor, string(children), i)
		if err != nil {
			return fmt.Errorf("insert locus %s: %w", l.ID, err)
		}
		locusID, _ := res.LastInsertId()

		for j, m := range l.Memories {
			if _, err := tx.Exec(`
				INSERT INTO memories (palace_id, locus_id, memory_key, subject, content, image,
					confidence, last_recalled, review_count, created_at, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, palaceID, locusID, m.ID, m.Subject, m.Content, m.Image,
				m.Confidence, millisPtr(m.LastRecalled), m.ReviewCount, millisOrNull(m.Created), j); err != nil {
				return fmt.Errorf("insert memory %s: %w", m.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save palace: %w", err)
	}
	return nil
}

// GetPalace loads a palace by name. Returns nil if it does not exist.
func (db *DB) GetPalace(name string) (*palace.Palace, error) {
	var (
		id      int64
		p       palace.Palace
		created int64
	)
	err := db.QueryRow(`SELECT id, name, theme, created_at FROM palaces WHERE name = ?`, name).
		Scan(&id, &p.Name, &p.Theme, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get palace: %w", err)
	}
	p.Created = time.UnixMilli(created).UTC()

	loci, index, err := db.loadLoci(id)
	if err != nil {
		return nil, err
	}
	if err := db.loadMemories(id, loci, index); err != nil {
		return nil, err
	}
	p.Loci = loci
	return &p, nil
}

func (db *DB) loadLoci(palaceID int64) ([]palace.Locus, map[int64]int, error) {
	rows, err := db.Query(`
		SELECT id, locus_key, name, anchor, children
		FROM loci WHERE palace_id = ? ORDER BY position
	`, palaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("get loci: %w", err)
	}
	defer rows.Close()

	var loci []palace.Locus
	index := make(map[int64]int)
	for rows.Next() {
		var (
			rowID    int64
			l        palace.Locus
			children string
		)
		if err := rows.Scan(&rowID, &l.ID, &l.Name, &l.Anchor, &children); err != nil {
			return nil, nil, fmt.Errorf("scan locus: %w", err)
		}
		if err := json.Unmarshal([]byte(children), &l.Children); err != nil {
			return nil, nil, fmt.Errorf("parse children of %s: %w", l.ID, err)
		}
		if len(l.Children) == 0 {
			l.Children = nil
		}
		index[rowID] = len(loci)
		loci = append(loci, l)
	}
	return loci, index, rows.Err()
}

func (db *DB) loadMemories(palaceID int64, loci []palace.Locus, index map[int64]int) error {
	rows, err := db.Query(`
		SELECT locus_id, memory_key, subject, content, image, confidence, last_recalled, review_count, created_at
		FROM memories WHERE palace_id = ? ORDER BY locus_id, position
	`, palaceID)
	if err != nil {
		return fmt.Errorf("get memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			locusID      int64
			m            palace.Memory
			lastRecalled sql.NullInt64
			created      sql.NullInt64
		)
		if err := rows.Scan(&locusID, &m.ID, &m.Subject, &m.Content, &m.Image,
			&m.Confidence, &lastRecalled, &m.ReviewCount, &created); err != nil {
			return fmt.Errorf("scan memory: %w", err)
		}
		if lastRecalled.Valid {
			t := time.UnixMilli(lastRecalled.Int64).UTC()
			m.LastRecalled = &t
		}
		if created.Valid {
			m.Created = time.UnixMilli(created.Int64).UTC()
		}
		i, ok := index[locusID]
		if !ok {
			return fmt.Errorf("memory %s references unknown locus %d", m.ID, locusID)
		}
		loci[i].Memories = append(loci[i].Memories, m)
	}
	return rows.Err()
}

// ListPalaces returns a summary of every stored palace, ordered by name.
func (db *DB) ListPalaces() ([]PalaceSummary, error) {
	rows, err := db.Query(`
		SELECT p.name, p.theme, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM loci l WHERE l.palace_id = p.id),
			(SELECT COUNT(*) FROM memories m WHERE m.palace_id = p.id)
		FROM palaces p ORDER BY p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list palaces: %w", err)
	}
	defer rows.Close()

	var out []PalaceSummary
	for rows.Next() {
		var (
			s                PalaceSummary
			created, updated int64
		)
		if err := rows.Scan(&s.Name, &s.Theme, &created, &updated, &s.Loci, &s.Memories); err != nil {
			return nil, fmt.Errorf("scan palace: %w", err)
		}
		s.CreatedAt = time.UnixMilli(created).UTC()
		s.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllPalaces loads every stored palace in name order.
func (db *DB) AllPalaces() ([]*palace.Palace, error) {
	summaries, err := db.ListPalaces()
	if err != nil {
		return nil, err
	}
	out := make([]*palace.Palace, 0, len(summaries))
	for _, s := range summaries {
		p, err := db.GetPalace(s.Name)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeletePalace removes a palace and everything in it.
func (db *DB) DeletePalace(name string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete palace: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM palaces WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("palace %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete palace: %w", err)
	}

	for _, q := range []string{
		`DELETE FROM memories WHERE palace_id = ?`,
		`DELETE FROM loci WHERE palace_id = ?`,
		`DELETE FROM palaces WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete palace: %w", err)
		}
	}
	return tx.Commit()
}

// RecordRecall applies a recall to one memory: review count +1, last
// recalled set to at, and confidence replaced when non-zero. It returns the
// updated memory.
func (db *DB) RecordRecall(palaceName, memoryID string, confidence int, at time.Time) (*palace.Memory, error) {
	if confidence < 0 || confidence > palace.MaxConfidence {
		return nil, fmt.Errorf("record recall: confidence %d outside [0, %d]", confidence, palace.MaxConfidence)
	}

	res, err := db.Exec(`
		UPDATE memories
		SET review_count = review_count + 1,
			last_recalled = ?,
			confidence = CASE WHEN ? > 0 THEN ? ELSE confidence END
		WHERE memory_key = ? AND palace_id = (SELECT id FROM palaces WHERE name = ?)
	`, at.UnixMilli(), confidence, confidence, memoryID, palaceName)
	if err != nil {
		return nil, fmt.Errorf("record recall: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("memory %s/%s: %w", palaceName, memoryID, ErrNotFound)
	}

	p, err := db.GetPalace(palaceName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("palace %q: %w", palaceName, ErrNotFound)
	}
	_, m, ok := p.Find(memoryID)
	if !ok {
		return nil, errors.New("record recall: memory vanished after update")
	}
	return m, nil
}

func millisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func millisOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

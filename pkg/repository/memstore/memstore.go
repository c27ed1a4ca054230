// Package memstore keeps clinic table records in process memory. It backs
// development runs and tests, and mirrors the search semantics of the table API.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"gopkg.in/yaml.v3"
)

// Store is safe for concurrent use. Records keep insertion order.
type Store struct {
	mu   sync.RWMutex
	cols map[string]*collection
}

type collection struct {
	order []string
	rows  map[string]model.Record
}

func New() *Store {
	return &Store{cols: make(map[string]*collection)}
}

// LoadSeed reads a YAML file of the form {collection: [record, ...]} and
// inserts every record.
func (s *Store) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.New("failed to read seed file").Arg("path", path).Wrap(err)
	}
	var seed map[string][]map[string]any
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return errs.New("failed to unmarshal seed YAML").Arg("path", path).Wrap(err)
	}
	for name, rows := range seed {
		for _, row := range rows {
			if _, err = s.Create(context.Background(), name, model.Record(row)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) col(name string) *collection {
	c, ok := s.cols[name]
	if !ok {
		c = &collection{rows: make(map[string]model.Record)}
		s.cols[name] = c
	}
	return c
}

// List supports the "search" parameter (case-insensitive substring over all
// field values), "limit", and exact-match filters on any other field.
func (s *Store) List(_ context.Context, name string, params url.Values) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cols[name]
	if !ok {
		return []model.Record{}, nil
	}

	search := strings.ToLower(params.Get("search"))
	limit, _ := strconv.Atoi(params.Get("limit"))

	out := make([]model.Record, 0, len(c.order))
	for _, id := range c.order {
		rec := c.rows[id]
		if search != "" && !containsValue(rec, search) {
			continue
		}
		if !matchesFilters(rec, params) {
			continue
		}
		out = append(out, clone(rec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, name, id string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.cols[name]; ok {
		if rec, ok := c.rows[id]; ok {
			return clone(rec), nil
		}
	}
	return nil, errs.NotFound("record not found").Arg("collection", name).Arg("id", id)
}

// Create stores the record under its "id", generating one when absent.
func (s *Store) Create(_ context.Context, name string, rec model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := clone(rec)
	id := row.ID()
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	c := s.col(name)
	if _, exists := c.rows[id]; exists {
		return nil, errs.Conflict("record already exists").Arg("collection", name).Arg("id", id)
	}
	c.order = append(c.order, id)
	c.rows[id] = row
	return clone(row), nil
}

func (s *Store) Replace(_ context.Context, name, id string, rec model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cols[name]
	if !ok || c.rows[id] == nil {
		return nil, errs.NotFound("record not found").Arg("collection", name).Arg("id", id)
	}
	row := clone(rec)
	row["id"] = id
	c.rows[id] = row
	return clone(row), nil
}

func (s *Store) Patch(_ context.Context, name, id string, partial model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cols[name]
	if !ok || c.rows[id] == nil {
		return nil, errs.NotFound("record not found").Arg("collection", name).Arg("id", id)
	}
	row := c.rows[id]
	for k, v := range clone(partial) {
		if k == "id" {
			continue
		}
		row[k] = v
	}
	return clone(row), nil
}

func (s *Store) Delete(_ context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cols[name]
	if !ok || c.rows[id] == nil {
		return errs.NotFound("record not found").Arg("collection", name).Arg("id", id)
	}
	delete(c.rows, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func matchesFilters(rec model.Record, params url.Values) bool {
	for key, vals := range params {
		switch key {
		case "search", "limit", "page", "sort":
			continue
		}
		if len(vals) == 0 {
			continue
		}
		if fmt.Sprint(rec[key]) != vals[0] {
			return false
		}
	}
	return true
}

func containsValue(rec model.Record, needle string) bool {
	for _, v := range rec {
		switch t := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(t), needle) {
				return true
			}
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && strings.Contains(strings.ToLower(s), needle) {
					return true
				}
			}
		}
	}
	return false
}

// clone deep-copies through JSON so callers never alias stored rows.
func clone(rec model.Record) model.Record {
	data, err := json.Marshal(rec)
	if err != nil {
		out := make(model.Record, len(rec))
		for k, v := range rec {
			out[k] = v
		}
		return out
	}
	var out model.Record
	_ = json.Unmarshal(data, &out)
	if out == nil {
		out = model.Record{}
	}
	return out
}

package extract

import (
	"context"
	"fmt"
	"sync"

	"design-props-rag/internal/models"
)

// fakeService is an in-memory Model Derivative service. Each endpoint reports
// "processing" for the configured number of calls before answering.
type fakeService struct {
	mu sync.Mutex

	views      []models.Viewable
	root       *models.Node
	records    []models.PropertyRecord
	processing int

	viewErr  error
	queryErr error

	hierarchyCalls int
	bulkCalls      int
	queries        []queryCall
}

type queryCall struct {
	guid   string
	ids    []int64
	fields []string
	offset int
	limit  int
}

func (f *fakeService) ListViewables(_ context.Context, _, _ string) ([]models.Viewable, error) {
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	return f.views, nil
}

func (f *fakeService) FetchHierarchy(_ context.Context, _, _, _ string) (*models.Node, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hierarchyCalls++
	if f.hierarchyCalls <= f.processing {
		return nil, false, nil
	}
	return f.root, true, nil
}

func (f *fakeService) FetchAllProperties(_ context.Context, _, _, _ string) ([]models.PropertyRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	if f.bulkCalls <= f.processing {
		return nil, false, nil
	}
	return f.records, true, nil
}

func (f *fakeService) QueryProperties(_ context.Context, _, guid string, q models.PropertyQuery, offset, limit int, _ string) (*models.PropertyPage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, false, f.queryErr
	}
	f.queries = append(f.queries, queryCall{guid: guid, ids: q.ObjectIDs, fields: q.Fields, offset: offset, limit: limit})

	matched := f.records
	if len(q.ObjectIDs) > 0 {
		want := make(map[int64]bool, len(q.ObjectIDs))
		for _, id := range q.ObjectIDs {
			want[id] = true
		}
		matched = nil
		for _, r := range f.records {
			if want[r.ObjectID] {
				matched = append(matched, r)
			}
		}
	}
	if offset > len(matched) {
		return nil, false, fmt.Errorf("offset %d past %d results", offset, len(matched))
	}
	end := min(offset+limit, len(matched))
	return &models.PropertyPage{
		Pagination: models.Pagination{Offset: offset, Limit: limit, TotalResults: len(matched)},
		Records:    matched[offset:end],
	}, true, nil
}

func numbered(n int) []models.PropertyRecord {
	out := make([]models.PropertyRecord, n)
	for i := range out {
		out[i] = models.PropertyRecord{
			ObjectID: int64(i + 1),
			Name:     fmt.Sprintf("Element %d", i+1),
			Properties: map[string]map[string]models.Value{
				"Dimensions": {"Area": models.Text(fmt.Sprintf("%d.5 m^2", i+1))},
			},
		}
	}
	return out
}

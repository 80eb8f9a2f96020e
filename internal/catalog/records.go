package catalog

import (
	"context"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/xxxsen/changerisk/internal/datasource"
	"github.com/xxxsen/changerisk/internal/model"
)

type recordsFile struct {
	Records []model.ChangeRecord `json:"records"`
}

// ParseRecords decodes the change-record table. The order of the file is kept;
// it decides the ranking of records with equal similarity.
func ParseRecords(data []byte) ([]model.ChangeRecord, error) {
	var file recordsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode change records: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Records))
	records := make([]model.ChangeRecord, 0, len(file.Records))
	for i, rec := range file.Records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return nil, fmt.Errorf("change record #%d has empty id", i)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate change record id: %s", id)
		}
		seen[id] = struct{}{}
		records = append(records, model.ChangeRecord{
			ID:          id,
			Subject:     rec.Subject,
			Description: rec.Description,
		})
	}
	return records, nil
}

func LoadRecords(ctx context.Context, src datasource.Source, name string) ([]model.ChangeRecord, error) {
	data, err := datasource.ReadAll(ctx, src, name)
	if err != nil {
		return nil, err
	}
	return ParseRecords(data)
}

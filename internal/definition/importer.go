package definition

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/logging"
)

// Importer stores definitions read from YAML files.
type Importer struct {
	pipelines *PipelineDefinitions
	materials *MaterialDefinitions
	logger    *slog.Logger
}

// NewImporter creates an Importer. A nil logger discards output.
func NewImporter(pipelines *PipelineDefinitions, materials *MaterialDefinitions, logger *slog.Logger) *Importer {
	return &Importer{pipelines: pipelines, materials: materials, logger: logging.OrDiscard(logger)}
}

// IsDefinitionFile reports whether path has a YAML extension.
func IsDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ImportFile loads one file and stores its definitions. It returns false
// without error when a definition with the same name already exists.
func (i *Importer) ImportFile(ctx context.Context, path string) (domain.PipelineDefinition, bool, error) {
	f, err := LoadFile(path)
	if err != nil {
		return domain.PipelineDefinition{}, false, err
	}
	def, materials, err := f.Definitions()
	if err != nil {
		return domain.PipelineDefinition{}, false, err
	}

	added, err := i.pipelines.Add(ctx, def)
	if domain.KindOf(err) == domain.KindAlreadyExists {
		i.logger.Info("definition already imported, file changes not applied", "name", def.Name, "path", path)
		return domain.PipelineDefinition{}, false, nil
	}
	if err != nil {
		return domain.PipelineDefinition{}, false, err
	}

	for _, md := range materials {
		md.PipelineDefinitionID = added.ID
		if _, err := i.materials.Add(ctx, md); err != nil {
			return added, true, err
		}
	}
	i.logger.Info("definition imported", "name", added.Name, "id", added.ID, "materials", len(materials))
	return added, true, nil
}

// ImportDir imports every YAML file in dir, in name order. A file that fails
// is logged and skipped. It returns the number of definitions added.
func (i *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsDefinitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		_, added, err := i.ImportFile(ctx, path)
		if err != nil {
			i.logger.Warn("skipping definition file", "path", path, "error", err)
			continue
		}
		if added {
			imported++
		}
	}
	return imported, nil
}

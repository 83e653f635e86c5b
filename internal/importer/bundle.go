package importer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
)

// BundleMetadata is the metadata.yaml at the bundle root.
type BundleMetadata struct {
	Version   string `yaml:"version"`
	Type      string `yaml:"type"`
	Timestamp string `yaml:"timestamp"`
	// Template marks the bundle's charts and datasets as externally
	// managed once imported, locking them against in-app edits.
	Template bool `yaml:"template"`
}

// DatabaseConfig is one databases/*.yaml entry.
type DatabaseConfig struct {
	UUID          uuid.UUID `yaml:"uuid"`
	DatabaseName  string    `yaml:"database_name"`
	SQLAlchemyURI string    `yaml:"sqlalchemy_uri"`
}

// DatasetConfig is one datasets/*.yaml entry.
type DatasetConfig struct {
	UUID         uuid.UUID `yaml:"uuid"`
	TableName    string    `yaml:"table_name"`
	Schema       string    `yaml:"schema"`
	DatabaseUUID uuid.UUID `yaml:"database_uuid"`
}

// ChartConfig is one charts/*.yaml entry.
type ChartConfig struct {
	UUID        uuid.UUID      `yaml:"uuid"`
	SliceName   string         `yaml:"slice_name"`
	VizType     string         `yaml:"viz_type"`
	DatasetUUID uuid.UUID      `yaml:"dataset_uuid"`
	Params      map[string]any `yaml:"params"`
}

// DashboardConfig is one dashboards/*.yaml entry. Position holds the
// exported layout tree with chart nodes referencing charts by uuid.
type DashboardConfig struct {
	UUID           uuid.UUID      `yaml:"uuid"`
	DashboardTitle string         `yaml:"dashboard_title"`
	Slug           *string        `yaml:"slug"`
	Description    string         `yaml:"description"`
	CSS            string         `yaml:"css"`
	Position       map[string]any `yaml:"position"`
	Metadata       map[string]any `yaml:"metadata"`
}

// Bundle is a parsed export bundle. Collections keep the file order of
// the archive so imports are deterministic.
type Bundle struct {
	Metadata   BundleMetadata
	Databases  []*DatabaseConfig
	Datasets   []*DatasetConfig
	Charts     []*ChartConfig
	Dashboards []*DashboardConfig
}

// ParseBundle decodes a bundle from a path->content map. The archive's
// single top-level directory, when present, is stripped before the
// paths are matched.
func ParseBundle(files map[string][]byte) (*Bundle, error) {
	files = stripBundleRoot(files)

	metaRaw, ok := files["metadata.yaml"]
	if !ok {
		return nil, aggregates.ValidationError("bundle is missing metadata.yaml")
	}
	b := &Bundle{}
	if err := yaml.Unmarshal(metaRaw, &b.Metadata); err != nil {
		return nil, aggregates.ValidationError(fmt.Sprintf("metadata.yaml: %v", err))
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := files[name]
		dir := strings.SplitN(path.Clean(name), "/", 2)[0]
		switch dir {
		case "databases":
			cfg := &DatabaseConfig{}
			if err := decodeConfig(name, raw, cfg); err != nil {
				return nil, err
			}
			if err := requireUUID(name, cfg.UUID); err != nil {
				return nil, err
			}
			b.Databases = append(b.Databases, cfg)
		case "datasets":
			cfg := &DatasetConfig{}
			if err := decodeConfig(name, raw, cfg); err != nil {
				return nil, err
			}
			if err := requireUUID(name, cfg.UUID); err != nil {
				return nil, err
			}
			b.Datasets = append(b.Datasets, cfg)
		case "charts":
			cfg := &ChartConfig{}
			if err := decodeConfig(name, raw, cfg); err != nil {
				return nil, err
			}
			if err := requireUUID(name, cfg.UUID); err != nil {
				return nil, err
			}
			b.Charts = append(b.Charts, cfg)
		case "dashboards":
			cfg := &DashboardConfig{}
			if err := decodeConfig(name, raw, cfg); err != nil {
				return nil, err
			}
			if err := requireUUID(name, cfg.UUID); err != nil {
				return nil, err
			}
			b.Dashboards = append(b.Dashboards, cfg)
		}
	}
	return b, nil
}

// ParseBundleZip decodes a bundle from a zip archive, the format the
// export endpoint of the source product produces.
func ParseBundleZip(data []byte) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, aggregates.ValidationError(fmt.Sprintf("bundle is not a zip archive: %v", err))
	}
	files := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !strings.HasSuffix(zf.Name, ".yaml") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, aggregates.ValidationError(fmt.Sprintf("%s: %v", zf.Name, err))
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, aggregates.ValidationError(fmt.Sprintf("%s: %v", zf.Name, err))
		}
		files[zf.Name] = raw
	}
	return ParseBundle(files)
}

func decodeConfig(name string, raw []byte, out any) error {
	if err := yaml.Unmarshal(raw, out); err != nil {
		return aggregates.ValidationError(fmt.Sprintf("%s: %v", name, err))
	}
	return nil
}

func requireUUID(name string, id uuid.UUID) error {
	if id == uuid.Nil {
		return aggregates.ValidationError(fmt.Sprintf("%s: missing uuid", name))
	}
	return nil
}

// stripBundleRoot removes a shared leading directory, when every file
// sits under exactly one.
func stripBundleRoot(files map[string][]byte) map[string][]byte {
	root := ""
	for name := range files {
		parts := strings.SplitN(path.Clean(name), "/", 2)
		if len(parts) < 2 {
			return files
		}
		if root == "" {
			root = parts[0]
		} else if parts[0] != root {
			return files
		}
	}
	if root == "" {
		return files
	}
	// metadata.yaml at the top level means there is no wrapper dir.
	if _, ok := files["metadata.yaml"]; ok {
		return files
	}
	out := make(map[string][]byte, len(files))
	for name, raw := range files {
		out[strings.TrimPrefix(path.Clean(name), root+"/")] = raw
	}
	return out
}

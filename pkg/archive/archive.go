// Package archive serves generated artifacts, their metadata, the catalog
// and the generation ledger over HTTP.
package archive

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/ledger"
	"github.com/wachiwi/tts-catalog/pkg/naming"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"gopkg.in/yaml.v3"
)

var metadataViews metric.Int64Counter

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/tts-catalog/pkg/archive")
	metadataViews, err = meter.Int64Counter("archive.metadata.views",
		metric.WithDescription("Total number of metadata sidecars served"),
		metric.WithUnit("{files}"),
	)
	if err != nil {
		slog.Error("Failed to create archive metrics", "error", err)
	}
}

const (
	KindAudio    = "audio"
	KindMetadata = "metadata"
)

var durationSuffix = regexp.MustCompile(`D=\d+s\.(mp3|wav)$`)

type Artifact struct {
	Name     string `json:"name"`
	Dir      string `json:"dir"`
	Kind     string `json:"kind"`
	Sequence int    `json:"sequence"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
}

// Server exposes the artifact root. Store and Ledger are optional.
type Server struct {
	Root   string
	Store  *catalog.Store
	Ledger *ledger.Ledger
	// Accounts protects every route except /healthz. Empty disables auth.
	Accounts gin.Accounts
}

// ListArtifacts walks root and returns the finished audio files and
// metadata sidecars, ordered by directory, sequence number, then name.
// Dir and Path are slash-separated and relative to root. Temporary files
// and names without a sequence prefix are skipped.
func ListArtifacts(root string) ([]Artifact, error) {
	artifacts := []Artifact{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		seq, ok := naming.ParseSequence(name)
		if !ok {
			return nil
		}
		var kind string
		switch {
		case durationSuffix.MatchString(name):
			kind = KindAudio
		case filepath.Ext(name) == ".yaml":
			kind = KindMetadata
		default:
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		artifacts = append(artifacts, Artifact{
			Name:     name,
			Dir:      path.Dir(rel),
			Kind:     kind,
			Sequence: seq,
			Size:     size,
			Path:     "/files/" + rel,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if a.Dir != b.Dir {
			return a.Dir < b.Dir
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.Name < b.Name
	})
	return artifacts, nil
}

// MetadataName maps an artifact name to its sidecar name.
func MetadataName(name string) string {
	if filepath.Ext(name) == ".yaml" {
		return name
	}
	return durationSuffix.ReplaceAllString(name, "") + ".yaml"
}

var errBadName = errors.New("invalid artifact name")

// readMetadata loads the sidecar of the artifact at rel, a slash-separated
// path below Root.
func (s *Server) readMetadata(rel string) (map[string]any, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || path.Clean(rel) != rel || rel == ".." || strings.HasPrefix(rel, "../") || strings.Contains(rel, "\\") {
		return nil, errBadName
	}
	sidecar := path.Join(path.Dir(rel), MetadataName(path.Base(rel)))
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(sidecar)))
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	authorized := router.Group("/")
	if len(s.Accounts) > 0 {
		authorized.Use(gin.BasicAuth(s.Accounts))
	}

	authorized.Static("/files", s.Root)
	authorized.GET("/api/artifacts", s.listArtifacts)
	authorized.GET("/api/metadata/*path", s.showMetadata)
	authorized.GET("/api/catalog", s.listCatalog)
	authorized.GET("/api/ledger", s.listLedger)
	return router
}

func (s *Server) listArtifacts(c *gin.Context) {
	artifacts, err := ListArtifacts(s.Root)
	if err != nil {
		slog.Error("Failed to list artifacts", "dir", s.Root, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list artifacts"})
		return
	}
	c.JSON(http.StatusOK, artifacts)
}

func (s *Server) showMetadata(c *gin.Context) {
	name := c.Param("path")
	m, err := s.readMetadata(name)
	switch {
	case errors.Is(err, errBadName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case os.IsNotExist(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "metadata not found"})
		return
	case err != nil:
		slog.Error("Failed to read metadata", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read metadata"})
		return
	}
	metadataViews.Add(c.Request.Context(), 1)
	c.JSON(http.StatusOK, m)
}

type catalogItem struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Input  string   `json:"input"`
	Voice  string   `json:"voice"`
	Models []string `json:"models"`
}

type catalogGroup struct {
	Category string        `json:"category"`
	Audios   []catalogItem `json:"audios"`
}

func (s *Server) listCatalog(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no catalog loaded"})
		return
	}
	groups := []catalogGroup{}
	for _, g := range s.Store.GroupByCategory() {
		grp := catalogGroup{Category: g.Category}
		for _, id := range g.IDs {
			e, _ := s.Store.Get(id)
			grp.Audios = append(grp.Audios, catalogItem{ID: id, Title: e.Title, Input: e.Input, Voice: e.Voice.Alias, Models: e.Models})
		}
		groups = append(groups, grp)
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) listLedger(c *gin.Context) {
	if s.Ledger == nil {
		c.JSON(http.StatusOK, []ledger.Entry{})
		return
	}
	entries, err := s.Ledger.Entries()
	if err != nil {
		slog.Error("Failed to read ledger", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}
	// Newest first
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	c.JSON(http.StatusOK, entries)
}

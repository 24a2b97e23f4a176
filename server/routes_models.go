// routes_models.go - Handler fuer Modell-Index, Ergebnis-Log, Validierung und History

package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/laserweed/modelconv/batch"
	"github.com/laserweed/modelconv/validate"
)

// IndexHandler liefert models_index.json. Ohne Index gibt es einen leeren.
func (s *Server) IndexHandler(c *gin.Context) {
	idx, err := batch.ReadIndex(s.IndexPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusOK, batch.Index{Models: []batch.IndexEntry{}})
	case err != nil:
		slog.Error("reading model index", "path", s.IndexPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, idx)
	}
}

// ResultsHandler liefert das Ergebnis-Log des letzten Batch-Laufs.
func (s *Server) ResultsHandler(c *gin.Context) {
	results, err := batch.ReadResults(filepath.Join(s.ModelsDir, batch.ResultsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "no conversion results"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, results)
	}
}

// ValidateHandler prueft das Ausgabeverzeichnis eines Modells.
func (s *Server) ValidateHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	dir := s.modelDir(id)
	err := validate.Dir(dir)
	var verr *validate.Error
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": id, "valid": true})
	case errors.As(err, &verr):
		c.JSON(http.StatusOK, gin.H{"id": id, "valid": false, "problems": verr.Problems})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// modelDir sucht das Verzeichnis eines Modells zuerst im Index, dann direkt unter ModelsDir.
func (s *Server) modelDir(id string) string {
	if idx, err := batch.ReadIndex(s.IndexPath); err == nil {
		for _, m := range idx.Models {
			if m.ID == id {
				rel := strings.TrimPrefix(filepath.ToSlash(filepath.Dir(m.Path)), "models/")
				return filepath.Join(s.ModelsDir, filepath.FromSlash(rel))
			}
		}
	}
	return filepath.Join(s.ModelsDir, id)
}

// HistoryHandler liefert die letzten Konvertierungen (?limit=N).
func (s *Server) HistoryHandler(c *gin.Context) {
	if s.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled, set MODELCONV_HISTORY"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.History.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

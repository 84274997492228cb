package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vonxq/lan-bridge/internal/models"
)

var fileCategories = []string{models.CategoryImages, models.CategoryVideos, models.CategoryFiles}

// FileService is the category-partitioned blob store for uploads. The record
// set is the directory listing itself; no registry is kept in memory.
type FileService struct {
	root string
}

// NewFileService creates a store rooted at the uploads directory.
func NewFileService(root string) *FileService {
	return &FileService{root: root}
}

// Save writes the upload under its MIME category with a collision-free name.
func (s *FileService) Save(r io.Reader, originalName, mimeType string) (*models.FileRecord, error) {
	category := categorize(mimeType)
	name := uniqueName(originalName)
	path := filepath.Join(s.root, category, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload %s: %w", path, err)
	}
	size, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload %s: %w", path, err)
	}

	return &models.FileRecord{
		Filename:  name,
		Category:  category,
		Size:      size,
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}, nil
}

// List returns the records for one category, or all categories when category
// is empty or "all". Newest first. Errors degrade to an empty list.
func (s *FileService) List(category string) []models.FileRecord {
	categories := fileCategories
	if category != "" && category != "all" {
		categories = []string{category}
	}
	records := []models.FileRecord{}
	for _, cat := range categories {
		dir := filepath.Join(s.root, cat)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("files: failed to list %s: %v", dir, err)
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			records = append(records, models.FileRecord{
				Filename:  e.Name(),
				Category:  cat,
				Size:      info.Size(),
				MimeType:  mime.TypeByExtension(filepath.Ext(e.Name())),
				CreatedAt: info.ModTime(),
			})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

// Resolve returns the on-disk path for filename. When category is empty or
// wrong, all three category directories are scanned.
func (s *FileService) Resolve(filename, category string) (string, bool) {
	// Reject anything that could escape the uploads root.
	if filename != filepath.Base(filename) {
		return "", false
	}
	if category != "" {
		path := filepath.Join(s.root, category, filename)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	for _, cat := range fileCategories {
		path := filepath.Join(s.root, cat, filename)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Delete removes a stored file, reporting whether anything was deleted.
func (s *FileService) Delete(filename, category string) bool {
	path, ok := s.Resolve(filename, category)
	if !ok {
		return false
	}
	if err := os.Remove(path); err != nil {
		log.Printf("files: failed to delete %s: %v", path, err)
		return false
	}
	return true
}

func categorize(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.CategoryImages
	case strings.HasPrefix(mimeType, "video/"):
		return models.CategoryVideos
	default:
		return models.CategoryFiles
	}
}

// uniqueName builds base_<unixms>_<rand>.ext so concurrent uploads of the
// same file never collide.
func uniqueName(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	if base == "" {
		base = "upload"
	}
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s_%d_%s%s", base, time.Now().UnixMilli(), hex.EncodeToString(suffix), ext)
}

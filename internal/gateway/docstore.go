package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/senyabanana/procurement-core/internal/models"
)

// FileDocumentStore формирует брошюру закупки как файл на диске.
// Путь возвращается для записи в карточку закупки; повторный вызов
// перезаписывает тот же файл и возвращает тот же путь.
type FileDocumentStore struct {
	root string
}

// NewFileDocumentStore создает хранилище брошюр в каталоге root.
func NewFileDocumentStore(root string) (*FileDocumentStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create brochure storage: %w", err)
	}
	return &FileDocumentStore{root: root}, nil
}

type brochureDocument struct {
	BidID         string   `json:"bidId"`
	Name          string   `json:"name"`
	Objective     string   `json:"objective"`
	Regions       []string `json:"regions"`
	DocumentPrice float64  `json:"documentPrice"`
	TotalPrice    float64  `json:"totalPrice"`
	RFPSource     bool     `json:"rfpSource"`
}

// Materialize записывает брошюру и возвращает путь к файлу.
func (s *FileDocumentStore) Materialize(ctx context.Context, bid *models.Bid) (string, error) {
	doc := brochureDocument{
		BidID:         bid.ID,
		Name:          bid.Name,
		Objective:     bid.Objective,
		Regions:       bid.Regions,
		DocumentPrice: bid.DocumentPrice,
		TotalPrice:    bid.TotalPrice,
		RFPSource:     bid.RFPSource,
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal brochure: %w", err)
	}

	path := filepath.Join(s.root, fmt.Sprintf("brochure_%s.json", bid.ID))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write brochure: %w", err)
	}
	return path, nil
}

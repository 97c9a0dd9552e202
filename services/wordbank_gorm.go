package services

import (
	"errors"
	"fmt"

	"motdepasse/models"

	"gorm.io/gorm"
)

// NewGormWordBank builds a word bank from the words table. The table is read
// once at startup; the session engine itself never touches the database.
func NewGormWordBank(db *gorm.DB, policy string) (*StaticWordBank, error) {
	var words []models.Word
	if err := db.Order("category, text").Find(&words).Error; err != nil {
		return nil, fmt.Errorf("failed to load words: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("words table is empty")
	}

	categories := make(map[string][]string)
	for _, w := range words {
		categories[w.Category] = append(categories[w.Category], w.Text)
	}
	return NewStaticWordBank(categories, policy), nil
}

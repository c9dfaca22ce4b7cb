package repository

import "github.com/yourusername/catalog-importer/internal/domain/entity"

// ReportWriter job natijasini fayl sifatida chiqarish uchun interface
type ReportWriter interface {
	// Render returns the report bytes and the suggested file name
	Render(job *entity.Job) ([]byte, string, error)
}

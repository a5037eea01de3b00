// Package boq generates the bill-of-quantities document for a project from
// its chosen estimation and renders the PDF artifact.
package boq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"buildmarket/internal/money"
	"buildmarket/models"

	"github.com/jung-kurt/gofpdf"
)

// ErrNoEstimation means the project has no priced estimation lines to
// derive a document from.
var ErrNoEstimation = errors.New("boq: project has no estimation items")

type Store interface {
	GetProject(ctx context.Context, id int) (*models.Project, error)
	GetEstimationItems(ctx context.Context, projectID int) ([]models.EstimationItem, error)
	UpsertBOQ(ctx context.Context, boq *models.BillOfQuantities, items []models.BOQItem) error
	GetBOQ(ctx context.Context, projectID int) (*models.BillOfQuantities, error)
}

type Generator struct {
	store       Store
	artifactDir string
	logger      *log.Logger
}

func NewGenerator(store Store, artifactDir string, logger *log.Logger) *Generator {
	return &Generator{store: store, artifactDir: artifactDir, logger: logger}
}

// Generate builds the priced line-item document for a project and renders
// its PDF. Idempotent per project: a repeat request overwrites both the
// stored document and the PDF file instead of accumulating duplicates.
func (g *Generator) Generate(ctx context.Context, projectID int, companyName, companyLogo string) (*models.BillOfQuantities, error) {
	project, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	estItems, err := g.store.GetEstimationItems(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if len(estItems) == 0 {
		return nil, ErrNoEstimation
	}

	items := make([]models.BOQItem, 0, len(estItems))
	var total int64
	for i, e := range estItems {
		lineTotal := e.UnitPrice * int64(e.Quantity)
		total += lineTotal
		items = append(items, models.BOQItem{
			Position:    i + 1,
			Description: e.Description,
			Unit:        e.Unit,
			Quantity:    e.Quantity,
			UnitPrice:   e.UnitPrice,
			LineTotal:   lineTotal,
		})
	}

	// Stable file name per project so the artifact supersedes too.
	pdfPath := filepath.Join(g.artifactDir, fmt.Sprintf("boq-project-%d.pdf", project.ID))
	if err := g.renderPDF(pdfPath, project, companyName, items, total); err != nil {
		return nil, fmt.Errorf("failed to render BOQ pdf: %w", err)
	}

	doc := &models.BillOfQuantities{
		ProjectID:   project.ID,
		CompanyName: companyName,
		CompanyLogo: companyLogo,
		Total:       total,
		PDFPath:     pdfPath,
	}
	if err := g.store.UpsertBOQ(ctx, doc, items); err != nil {
		return nil, err
	}
	g.logger.Printf("generated BOQ for project %d: %d items, total %s", project.ID, len(items), money.FormatMinor(total))
	return doc, nil
}

func (g *Generator) Get(ctx context.Context, projectID int) (*models.BillOfQuantities, error) {
	return g.store.GetBOQ(ctx, projectID)
}

func (g *Generator) renderPDF(path string, project *models.Project, companyName string, items []models.BOQItem, total int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, companyName)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Bill of Quantities - %s", project.Name))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(12, 7, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(78, 7, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Unit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Unit Price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Total", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		pdf.CellFormat(12, 7, fmt.Sprintf("%d", it.Position), "1", 0, "C", false, 0, "")
		pdf.CellFormat(78, 7, it.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, it.Unit, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, money.FormatMinor(it.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, money.FormatMinor(it.LineTotal), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(160, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, money.FormatMinor(total), "1", 1, "R", false, 0, "")

	return pdf.OutputFileAndClose(path)
}

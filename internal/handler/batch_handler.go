package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/repository"
	"github.com/facturio/invoice-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type BatchService interface {
	RegisterBatch(ctx context.Context, filename string, content io.Reader) (*domain.Batch, string, error)
	GetBatch(ctx context.Context, id string) (*service.BatchDetail, error)
	ListBatches(ctx context.Context, params repository.ListBatchParams) ([]domain.Batch, int64, error)
	ListBatchRecords(ctx context.Context, batchID string, params repository.ListRecordParams) ([]domain.InvoiceRecord, int64, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.UploadBatch)
	v1.Get("/batches", h.ListBatches)
	v1.Get("/batches/:id", h.GetBatch)
	v1.Get("/batches/:id/records", h.ListBatchRecords)

	return nil
}

type batchResponse struct {
	ID               string    `json:"id"`
	SourceFilename   string    `json:"sourceFilename"`
	Status           string    `json:"status"`
	TotalRecords     int       `json:"totalRecords"`
	ProcessedRecords int       `json:"processedRecords"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type uploadBatchResponse struct {
	Batch  batchResponse `json:"batch"`
	TaskID string        `json:"taskId"`
}

type batchStatsResponse struct {
	Total       int     `json:"total"`
	Sent        int     `json:"sent"`
	Rejected    int     `json:"rejected"`
	RemoteError int     `json:"remoteError"`
	TotalAmount float64 `json:"totalAmount"`
	SuccessRate float64 `json:"successRate"`
}

type batchDetailResponse struct {
	Batch batchResponse      `json:"batch"`
	Stats batchStatsResponse `json:"stats"`
}

type recordResponse struct {
	ID              string    `json:"id"`
	BatchID         *string   `json:"batchId,omitempty"`
	ReferenceCode   string    `json:"referenceCode"`
	CustomerEmail   string    `json:"customerEmail"`
	Total           float64   `json:"total"`
	Status          string    `json:"status"`
	RejectionReason *string   `json:"rejectionReason,omitempty"`
	APIResponse     *string   `json:"apiResponse,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type listBatchesResponse struct {
	Data []batchResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listRecordsResponse struct {
	Data []recordResponse `json:"data"`
	Meta listMeta         `json:"meta"`
}

// UploadBatch accepts a multipart upload under the "file" field and
// registers it for asynchronous processing.
func (h *BatchHandler) UploadBatch(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to open uploaded file")
	}
	defer file.Close() //nolint:errcheck

	batch, taskID, err := h.service.RegisterBatch(c.Context(), fileHeader.Filename, file)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(uploadBatchResponse{
		Batch:  toBatchResponse(batch),
		TaskID: taskID,
	})
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	detail, err := h.service.GetBatch(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(batchDetailResponse{
		Batch: toBatchResponse(&detail.Batch),
		Stats: batchStatsResponse{
			Total:       detail.Stats.Total,
			Sent:        detail.Stats.Sent,
			Rejected:    detail.Stats.Rejected,
			RemoteError: detail.Stats.RemoteError,
			TotalAmount: detail.Stats.TotalAmount,
			SuccessRate: detail.Stats.SuccessRate(),
		},
	})
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return toHTTPError(err)
	}

	params := repository.ListBatchParams{Page: page, PageSize: pageSize}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBatchStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	batches, total, err := h.service.ListBatches(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchResponse, 0, len(batches))
	for i := range batches {
		data = append(data, toBatchResponse(&batches[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: data,
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *BatchHandler) ListBatchRecords(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("id"))

	page, pageSize, err := parsePagination(c)
	if err != nil {
		return toHTTPError(err)
	}

	params := repository.ListRecordParams{Page: page, PageSize: pageSize}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseRecordStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	records, total, err := h.service.ListBatchRecords(c.Context(), batchID, params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listRecordsResponse{
		Data: toRecordResponses(records),
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func parsePagination(c *fiber.Ctx) (int, int, error) {
	page := c.QueryInt("page", defaultPage)
	pageSize := c.QueryInt("pageSize", defaultPageSize)

	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	return page, pageSize, nil
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	return batchResponse{
		ID:               b.ID,
		SourceFilename:   b.SourceFilename,
		Status:           b.Status.String(),
		TotalRecords:     b.TotalRecords,
		ProcessedRecords: b.ProcessedRecords,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func toRecordResponses(records []domain.InvoiceRecord) []recordResponse {
	responses := make([]recordResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toRecordResponse(&records[i]))
	}
	return responses
}

func toRecordResponse(r *domain.InvoiceRecord) recordResponse {
	if r == nil {
		return recordResponse{}
	}

	return recordResponse{
		ID:              r.ID,
		BatchID:         r.BatchID,
		ReferenceCode:   r.ReferenceCode,
		CustomerEmail:   r.CustomerEmail,
		Total:           r.Total,
		Status:          r.Status.String(),
		RejectionReason: r.RejectionReason,
		APIResponse:     r.APIResponse,
		CreatedAt:       r.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	default:
		return err
	}
}

package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/repository"
	"github.com/facturio/invoice-engine/internal/service"
)

type InvoiceService interface {
	SubmitInvoice(ctx context.Context, input service.SubmitInvoiceInput) (*domain.InvoiceRecord, error)
	GetRecord(ctx context.Context, id string) (*domain.InvoiceRecord, error)
	ListRecords(ctx context.Context, params repository.ListRecordParams) ([]domain.InvoiceRecord, int64, error)
}

type InvoiceHandler struct {
	service InvoiceService
}

func NewInvoiceHandler(service InvoiceService) (*InvoiceHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("invoice service is required")
	}
	return &InvoiceHandler{service: service}, nil
}

func RegisterInvoiceRoutes(router fiber.Router, service InvoiceService) error {
	h, err := NewInvoiceHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/invoices", h.SubmitInvoice)
	v1.Get("/invoices", h.ListInvoices)
	v1.Get("/invoices/:id", h.GetInvoice)

	return nil
}

type submitInvoiceRequest struct {
	InvoiceID     string                     `json:"invoiceId"`
	CustomerName  string                     `json:"customerName"`
	CustomerEmail string                     `json:"customerEmail"`
	Items         []submitInvoiceItemRequest `json:"items"`
}

type submitInvoiceItemRequest struct {
	Product   string  `json:"product"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int64   `json:"quantity"`
	TaxRate   float64 `json:"taxRate"`
}

func (h *InvoiceHandler) SubmitInvoice(c *fiber.Ctx) error {
	var req submitInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	items := make([]service.SubmitItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.SubmitItemInput{
			Product:   item.Product,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			TaxRate:   item.TaxRate,
		})
	}

	record, err := h.service.SubmitInvoice(c.Context(), service.SubmitInvoiceInput{
		InvoiceID:     req.InvoiceID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
	})
	if err != nil {
		return toHTTPError(err)
	}

	status := fiber.StatusCreated
	if record.Status == domain.RecordStatusRemoteError {
		// The submission was processed and persisted, the remote service
		// refused it; the record tells the caller why.
		status = fiber.StatusBadGateway
	}

	return c.Status(status).JSON(toRecordResponse(record))
}

func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	record, err := h.service.GetRecord(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRecordResponse(record))
}

func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
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
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		params.CustomerEmail = &email
	}

	records, total, err := h.service.ListRecords(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listRecordsResponse{
		Data: toRecordResponses(records),
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

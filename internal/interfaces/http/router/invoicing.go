package router

import (
	"github.com/clinicerp/backend/internal/interfaces/http/handler"
)

// InvoicingHandlers are the handlers mounted under /invoicing
type InvoicingHandlers struct {
	Invoice      *handler.InvoiceHandler
	Payment      *handler.PaymentHandler
	Quotation    *handler.QuotationHandler
	Sequence     *handler.SequenceHandler
	SupplierBill *handler.SupplierBillHandler
	Report       *handler.ReportHandler
}

// NewInvoicingRoutes builds the /invoicing domain group
func NewInvoicingRoutes(h InvoicingHandlers) *DomainGroup {
	routes := NewDomainGroup("invoicing", "/invoicing")

	routes.POST("/calculator/preview", h.Invoice.Preview)

	invoices := routes.Group("invoices", "/invoices")
	invoices.POST("", h.Invoice.Create).
		GET("", h.Invoice.List).
		GET("/:id", h.Invoice.GetByID).
		PUT("/:id", h.Invoice.Update).
		POST("/:id/finalize", h.Invoice.Finalize).
		POST("/:id/cancel", h.Invoice.Cancel).
		GET("/:id/payments", h.Payment.List).
		POST("/:id/payments", h.Payment.Apply).
		POST("/:id/reconcile", h.Payment.Reconcile)

	routes.Group("payments", "/payments").
		POST("/:id/void", h.Payment.Void)

	routes.Group("quotations", "/quotations").
		POST("", h.Quotation.Create).
		GET("", h.Quotation.List).
		GET("/:id", h.Quotation.GetByID).
		PUT("/:id", h.Quotation.Update).
		POST("/:id/send", h.Quotation.Send).
		POST("/:id/accept", h.Quotation.Accept).
		POST("/:id/reject", h.Quotation.Reject).
		POST("/:id/convert", h.Quotation.Convert)

	routes.Group("sequences", "/sequences").
		POST("", h.Sequence.Register).
		GET("", h.Sequence.List).
		GET("/:id", h.Sequence.GetByID).
		POST("/:id/deactivate", h.Sequence.Deactivate)

	routes.Group("supplier-bills", "/supplier-bills").
		POST("", h.SupplierBill.Register).
		GET("", h.SupplierBill.List).
		GET("/:id", h.SupplierBill.GetByID).
		POST("/:id/cancel", h.SupplierBill.Cancel)

	// static segments before :id so gin does not treat them as ids
	routes.Group("reports", "/reports").
		POST("/generate", h.Report.Generate).
		GET("/tax-balance", h.Report.TaxBalance).
		GET("", h.Report.List).
		GET("/:id", h.Report.GetByID).
		POST("/:id/submit", h.Report.Submit).
		POST("/:id/accept", h.Report.Accept).
		POST("/:id/reject", h.Report.Reject)

	return routes
}

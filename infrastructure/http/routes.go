package http

import (
	"net/http"
	"time"

	"stockoverflow/frontend/cars"
	"stockoverflow/frontend/categories"
	"stockoverflow/frontend/checkout"
	"stockoverflow/frontend/inventory"
	"stockoverflow/frontend/login"
	"stockoverflow/frontend/logs"
	scansessions "stockoverflow/frontend/scanSessions"
	"stockoverflow/frontend/thresholds"
	"stockoverflow/frontend/users"
	"stockoverflow/infrastructure/rbac"

	"github.com/go-chi/chi/v5"
)

// RegisterRbac grants the protected routes. Everything not listed here is open.
func (s *Server) RegisterRbac() {
	for _, role := range []string{rbac.RoleAdmin, rbac.RoleManager} {
		s.Rbac.Add(role, "USERS_LIST", http.MethodGet, "/users")
		s.Rbac.Add(role, "USERS_CREATE", http.MethodPost, "/users")
		s.Rbac.Add(role, "USERS_VIEW", http.MethodGet, "/users/*")
		s.Rbac.Add(role, "USERS_EDIT", http.MethodPut, "/users/*")
		s.Rbac.Add(role, "USERS_PATCH", http.MethodPatch, "/users/*")
		s.Rbac.Add(role, "USERS_DELETE", http.MethodDelete, "/users/*")
		s.Rbac.Add(role, "LOGS_DELETE", http.MethodDelete, "/logs")
		s.Rbac.Add(role, "LOGS_RESET", http.MethodPost, "/logs/reset")
		s.Rbac.Add(role, "THRESHOLDS_RUN", http.MethodPost, "/thresholds/run")
	}
}

// RegisterRoutes mounts every resource on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	s.RegisterLoginRoutes(r)
	s.RegisterCarRoutes(r)
	s.RegisterInventoryRoutes(r)
	s.RegisterCheckoutRoutes(r)
	s.RegisterAdminRoutes(r)
	s.RegisterScanRoutes(r)
}

func (s *Server) RegisterLoginRoutes(r chi.Router) {
	r.Post("/login", login.CreateLoginHandler(s.DB, s.Issuer))
	r.Post("/badge_login", login.BadgeLoginHandler(s.DB, s.Issuer))
}

func (s *Server) RegisterCarRoutes(r chi.Router) {
	maxUpload := s.Config.UploadMaxBytes
	r.Get("/cars", cars.ListCarsQueryHandler(s.DB))
	r.Post("/cars", cars.CreateCarCommandHandler(s.DB, maxUpload))
	r.Post("/cars/manual_add", cars.BulkUploadCommandHandler(s.DB, maxUpload))
	r.Post("/cars/bulk_upload", cars.BulkUploadCommandHandler(s.DB, maxUpload))
	r.Get("/cars/{id}", cars.GetCarQueryHandler(s.DB))
	r.Put("/cars/{id}", cars.UpdateCarCommandHandler(s.DB, false))
	r.Patch("/cars/{id}", cars.UpdateCarCommandHandler(s.DB, true))
	r.Delete("/cars/{id}", cars.DeleteCarCommandHandler(s.DB))
	r.Get("/cars/{id}/parts", cars.ListCarPartsQueryHandler(s.DB))
	r.Post("/cars/{id}/parts", cars.AddCarPartCommandHandler(s.DB))
	r.Post("/scan_vin", cars.ScanVINCommandHandler(s.DB))
}

func (s *Server) RegisterInventoryRoutes(r chi.Router) {
	r.Get("/inventory", inventory.ListItemsQueryHandler(s.DB))
	r.Post("/inventory", inventory.CreateItemCommandHandler(s.DB, s.Audit, s.Config.ChildItemPolicy))
	r.Get("/inventory/labels.pdf", inventory.LabelSheetPDFQueryHandler(s.DB))
	r.Get("/inventory/barcode/{barcode}", inventory.FindByBarcodeQueryHandler(s.DB))
	r.Get("/inventory/{id}", inventory.GetItemQueryHandler(s.DB))
	r.Put("/inventory/{id}", inventory.UpdateItemCommandHandler(s.DB, s.Audit, false))
	r.Patch("/inventory/{id}", inventory.UpdateItemCommandHandler(s.DB, s.Audit, true))
	r.Delete("/inventory/{id}", inventory.DeleteItemCommandHandler(s.DB, s.Audit))
	r.Get("/inventory/{id}/label.png", inventory.ItemLabelPNGQueryHandler(s.DB))

	r.Get("/categories", categories.ListCategoriesQueryHandler(s.DB))
	r.Post("/categories", categories.CreateCategoryCommandHandler(s.DB))
	r.Get("/categories/{id}", categories.GetCategoryQueryHandler(s.DB))
	r.Put("/categories/{id}", categories.UpdateCategoryCommandHandler(s.DB))
	r.Patch("/categories/{id}", categories.UpdateCategoryCommandHandler(s.DB))
	r.Delete("/categories/{id}", categories.DeleteCategoryCommandHandler(s.DB))
}

func (s *Server) RegisterCheckoutRoutes(r chi.Router) {
	r.Get("/checkout", checkout.ListCheckoutsQueryHandler(s.DB))
	r.Post("/checkout", checkout.CreateCheckoutCommandHandler(s.DB, s.Audit, s.Config.CheckoutAtomic))
	r.Get("/checkout/{id}", checkout.GetCheckoutQueryHandler(s.DB))
	r.Get("/checkout/{id}/slip.pdf", checkout.CheckoutSlipPDFQueryHandler(s.DB))
}

// RegisterAdminRoutes registers user management, logs and the threshold trigger.
func (s *Server) RegisterAdminRoutes(r chi.Router) {
	r.Get("/users", users.ListUsersQueryHandler(s.DB))
	r.Post("/users", users.CreateUserCommandHandler(s.DB))
	r.Get("/users/{id}", users.GetUserQueryHandler(s.DB))
	r.Put("/users/{id}", users.UpdateUserCommandHandler(s.DB))
	r.Patch("/users/{id}", users.UpdateUserCommandHandler(s.DB))
	r.Delete("/users/{id}", users.DeleteUserCommandHandler(s.DB))

	r.Get("/logs", logs.ListLogsQueryHandler(s.DB, time.Local))
	r.Get("/logs/view", logs.LogsPageQueryHandler(s.DB, time.Local))
	r.Delete("/logs", logs.ResetLogsCommandHandler(s.DB))
	r.Post("/logs/reset", logs.ResetLogsCommandHandler(s.DB))

	if s.Monitor != nil {
		r.Post("/thresholds/run", thresholds.RunThresholdsCommandHandler(s.Monitor))
	}
}

func (s *Server) RegisterScanRoutes(r chi.Router) {
	r.Post("/scan_item", scansessions.ScanItemCommandHandler(s.DB))
	r.Post("/confirm_session", scansessions.ConfirmSessionCommandHandler(s.DB, s.Audit))
	r.Get("/scan_sessions/{sessionID}", scansessions.GetSessionQueryHandler(s.DB))
}

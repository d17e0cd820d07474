package handler

import (
	"agenda/internal/availability/service"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var rule model.AvailabilityRule
	if err := httputil.DecodeJSON(r, &rule); err != nil {
		h.writeError(w, "CreateRule", err)
		return
	}
	rule.ResourceID = ps.ByName("resource_id")

	if err := h.service.CreateRule(r.Context(), &rule); err != nil {
		h.writeError(w, "CreateRule", err)
		return
	}

	if err := httputil.WriteCreated(w, rule); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateRule", "operation", "WriteCreated", "error", err)
	}
}

func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rules, err := h.service.ListRules(r.Context(), ps.ByName("resource_id"))
	if err != nil {
		h.writeError(w, "ListRules", err)
		return
	}

	if err := httputil.WriteList(w, rules, len(rules)); err != nil {
		h.log.Error("failed to write list response", "handler", "ListRules", "operation", "WriteList", "error", err)
	}
}

func (h *AvailabilityHandler) UpdateRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.AvailabilityRuleUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "UpdateRule", err)
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "UpdateRule", err)
		return
	}

	if err := httputil.WriteSuccess(w, rule); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateRule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) DeleteRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeleteRule(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "DeleteRule", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AvailabilityHandler) GetConfig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	vc, err := h.service.GetConfig(r.Context(), ps.ByName("resource_id"))
	if err != nil {
		h.writeError(w, "GetConfig", err)
		return
	}

	if err := httputil.WriteSuccess(w, vc); err != nil {
		h.log.Error("failed to write success response", "handler", "GetConfig", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) PutConfig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var vc model.ValidationConfig
	if err := httputil.DecodeJSON(r, &vc); err != nil {
		h.writeError(w, "PutConfig", err)
		return
	}
	vc.ResourceID = ps.ByName("resource_id")

	if err := h.service.PutConfig(r.Context(), &vc); err != nil {
		h.writeError(w, "PutConfig", err)
		return
	}

	if err := httputil.WriteSuccess(w, vc); err != nil {
		h.log.Error("failed to write success response", "handler", "PutConfig", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/resources/:resource_id/rules", h.CreateRule)
	router.GET("/api/v1/resources/:resource_id/rules", h.ListRules)
	router.PATCH("/api/v1/rules/:id", h.UpdateRule)
	router.DELETE("/api/v1/rules/:id", h.DeleteRule)
	router.GET("/api/v1/resources/:resource_id/validation-config", h.GetConfig)
	router.PUT("/api/v1/resources/:resource_id/validation-config", h.PutConfig)
}

package http

import (
	"net/http"
	"strconv"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	out := make([]catalogEntryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, catalogEntryResponse{ID: c.ID, Name: c.Name})
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.catalog.CreateCategory(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, "create category", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Location("/api/categories/" + strconv.FormatInt(c.ID, 10)).
		Data(catalogEntryResponse{ID: c.ID, Name: c.Name}).
		Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.catalog.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, "get category", err)
		return
	}
	NewJSONResponse().Data(catalogEntryResponse{ID: c.ID, Name: c.Name}).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.catalog.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, "delete category", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListPaymentMethods(r.Context())
	if err != nil {
		writeError(w, r, "list payment methods", err)
		return
	}
	out := make([]catalogEntryResponse, 0, len(list))
	for _, p := range list {
		out = append(out, catalogEntryResponse{ID: p.ID, Name: p.Name})
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p, err := s.catalog.CreatePaymentMethod(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, "create payment method", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Data(catalogEntryResponse{ID: p.ID, Name: p.Name}).
		Write(w)
}

func (s *Server) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.catalog.DeletePaymentMethod(r.Context(), id); err != nil {
		writeError(w, r, "delete payment method", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleRecurrenceTypes(w http.ResponseWriter, r *http.Request) {
	types := s.catalog.RecurrenceTypes()
	out := make([]recurrenceTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, recurrenceTypeResponse{ID: int(t.ID), Code: t.Code, Label: t.Label})
	}
	NewJSONResponse().Data(out).Write(w)
}

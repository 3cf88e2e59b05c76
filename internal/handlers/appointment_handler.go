package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/services"
)

// CreateAppointment is the public booking endpoint.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing or invalid fields: firstName, lastName, email, problemDesc and scheduledDate are required")
		return
	}

	apt, err := h.Appointments.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"appointment": apt,
		"message":     "Appointment booked successfully",
	})
}

// parseDay accepts a calendar day or a full RFC3339 timestamp.
func parseDay(s string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

// listFilter reads ?status=&mine=&history=&from=&to= from the query string.
func listFilter(c *gin.Context) (services.ListFilter, string) {
	var f services.ListFilter

	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, ok := models.ParseStatus(part)
			if !ok {
				return f, "Invalid status filter: " + part
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	for name, dst := range map[string]*bool{"mine": &f.Mine, "history": &f.History} {
		if v := c.Query(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return f, "Invalid " + name + " filter"
			}
			*dst = b
		}
	}
	if v := c.Query("from"); v != "" {
		t, _, err := parseDay(v)
		if err != nil {
			return f, "Invalid from date"
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, isDay, err := parseDay(v)
		if err != nil {
			return f, "Invalid to date"
		}
		if isDay {
			t = t.Add(24 * time.Hour)
		}
		f.Until = &t
	}
	return f, ""
}

func (h *Handler) GetAppointments(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, problem := listFilter(c)
	if problem != "" {
		badRequest(c, problem)
		return
	}

	appointments, err := h.Appointments.List(c.Request.Context(), p, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appointments})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "appointment")
	if !ok {
		return
	}

	apt, err := h.Appointments.Get(c.Request.Context(), p, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": apt})
}

// UpdateAppointment applies {status?, notes?, followUpNeeded?}.
func (h *Handler) UpdateAppointment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "appointment")
	if !ok {
		return
	}
	var patch models.AppointmentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	apt, err := h.Appointments.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": apt})
}

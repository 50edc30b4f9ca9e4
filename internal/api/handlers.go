package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"villasole/internal/models"
)

type stayRequest struct {
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Adults        int    `json:"adults"`
	ChildrenAges  []int  `json:"children_ages"`
	ParkingOption string `json:"parking_option"`
}

func (r stayRequest) toParams() (models.StayParams, error) {
	checkIn, err := parseDate(r.CheckIn)
	if err != nil {
		return models.StayParams{}, models.NewValidationError("check_in", "expected YYYY-MM-DD")
	}
	checkOut, err := parseDate(r.CheckOut)
	if err != nil {
		return models.StayParams{}, models.NewValidationError("check_out", "expected YYYY-MM-DD")
	}
	return models.StayParams{
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Adults:        r.Adults,
		ChildrenAges:  r.ChildrenAges,
		ParkingOption: r.ParkingOption,
	}, nil
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body stayRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	params, err := body.toParams()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	breakdown, err := s.bookings.GetQuote(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	checkIn, err := parseDate(r.URL.Query().Get("check_in"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "check_in is required as YYYY-MM-DD")
		return
	}
	checkOut, err := parseDate(r.URL.Query().Get("check_out"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "check_out is required as YYYY-MM-DD")
		return
	}

	result, err := s.bookings.CheckAvailability(r.Context(), models.DateRange{Start: checkIn, End: checkOut})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createBookingRequest struct {
	stayRequest
	Guest   models.GuestInfo     `json:"guest"`
	Payment models.PaymentChoice `json:"payment"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body createBookingRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	params, err := body.toParams()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), params, body.Guest, body.Payment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleBookingByReference(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	reference, action, _ := strings.Cut(rest, "/")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "booking reference is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		booking, err := s.bookings.GetBooking(r.Context(), reference)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case action == "confirm" && r.Method == http.MethodPost:
		var body struct {
			Method string `json:"method"`
		}
		if r.ContentLength > 0 {
			if err := decodeJSON(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
		}
		booking, err := s.bookings.ConfirmPayment(r.Context(), reference, body.Method)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case action == "cancel" && r.Method == http.MethodPost:
		booking, err := s.bookings.CancelBooking(r.Context(), reference)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	results := s.sync.SyncAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *HTTPServer) handleSyncSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := pathID(r.URL.Path, "/api/v1/sync/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "source id is required")
		return
	}

	result := s.sync.SyncSource(r.Context(), id)
	status := http.StatusOK
	if result.Err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) handleSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sources, err := s.admin.ListSources(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sources": sources})

	case http.MethodPost:
		var source models.ExternalCalendarSource
		if err := decodeJSON(r, &source); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.admin.CreateSource(r.Context(), &source); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, source)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSourceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := pathID(r.URL.Path, "/api/v1/sources/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "source id is required")
		return
	}
	if err := s.admin.DeleteSource(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleBlockedDates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ranges, err := s.admin.ListBlockedRanges(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blocked_dates": ranges})

	case http.MethodPost:
		var body struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
			Reason    string `json:"reason"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		start, err := parseDate(body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date is required as YYYY-MM-DD")
			return
		}
		end, err := parseDate(body.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date is required as YYYY-MM-DD")
			return
		}

		blocked, err := s.admin.CreateManualBlock(r.Context(), start, end, body.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, blocked)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleBlockedDateByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := pathID(r.URL.Path, "/api/v1/blocked-dates/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "blocked range id is required")
		return
	}
	if err := s.admin.DeleteBlockedRange(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handlePricing(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.admin.GetPricing(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPut:
		var cfg models.PricingConfig
		if err := decodeJSON(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.admin.UpdatePricing(r.Context(), &cfg); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleOccupancyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, err := parseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start is required as YYYY-MM-DD")
		return
	}
	end, err := parseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end is required as YYYY-MM-DD")
		return
	}

	filePath, err := s.exporter.ExportOccupancy(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report file unavailable")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(filePath))
	http.ServeContent(w, r, filepath.Base(filePath), time.Now(), file)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(models.DateFormat, strings.TrimSpace(raw))
}

func pathID(path, prefix string) (int64, error) {
	raw := strings.TrimPrefix(path, prefix)
	raw = strings.TrimSuffix(raw, "/")
	return strconv.ParseInt(raw, 10, 64)
}

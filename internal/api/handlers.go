package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/market-quotes-api/internal/metrics"
	"github.com/JakeFAU/market-quotes-api/internal/quotes"
	"github.com/JakeFAU/market-quotes-api/internal/records"
)

const (
	msgRequiredValues = "Todos los valores son obligatorios y no pueden ser nulos"
	msgRequiredTexto  = "El campo `texto` es obligatorio y debe ser una cadena de texto no vacía"
	msgInvalidJSON    = "El cuerpo de la petición no es un JSON válido"
	msgTooLarge       = "El cuerpo de la petición es demasiado grande"
)

// EventRecordCreated is the type of the event published after an insert.
const EventRecordCreated = "record.created"

// RecordEvent announces a newly inserted row.
type RecordEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Table     string    `json:"table"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

func (s *Server) scrapeHandler(src quotes.Source, failMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := s.scraper.Quote(r.Context(), src)
		if err != nil {
			s.logger.Error("scrape failed",
				zap.String("instrument", src.Name),
				zap.String("url", src.URL),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, failMsg)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{src.Field: q.Value})
	}
}

func (s *Server) insertCityPrices(w http.ResponseWriter, r *http.Request) {
	var in records.CityPriceInput
	if !decodeBody(w, r, &in) {
		return
	}
	row, err := in.Validate()
	if err != nil {
		writeValidationError(w, msgRequiredValues, err)
		return
	}
	if err := s.store.InsertCityPrices(r.Context(), row); err != nil {
		s.logStoreError("insert failed", records.TableCityPrices, err)
		writeError(w, http.StatusInternalServerError, "Error al insertar datos en `precios_ciudades`")
		return
	}
	s.recordCreated(r.Context(), records.TableCityPrices)
	writeJSON(w, http.StatusOK, map[string]string{"message": "✅ Datos insertados en la tabla `precios_ciudades`"})
}

func (s *Server) latestCityPrices(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.LatestCityPrices(r.Context())
	switch {
	case errors.Is(err, records.ErrNoRows):
		writeJSON(w, http.StatusOK, map[string]string{"message": "No hay datos en la tabla `precios_ciudades`"})
	case err != nil:
		s.logStoreError("latest lookup failed", records.TableCityPrices, err)
		writeError(w, http.StatusInternalServerError, "Error al obtener datos de `precios_ciudades`")
	default:
		writeJSON(w, http.StatusOK, row)
	}
}

func (s *Server) insertClosingReport(w http.ResponseWriter, r *http.Request) {
	var in records.ClosingReportInput
	if !decodeBody(w, r, &in) {
		return
	}
	row, err := in.Validate()
	if err != nil {
		writeValidationError(w, msgRequiredValues, err)
		return
	}
	if err := s.store.InsertClosingReport(r.Context(), row); err != nil {
		s.logStoreError("insert failed", records.TableClosingReports, err)
		writeError(w, http.StatusInternalServerError, "Error al insertar datos en `cierre`")
		return
	}
	s.recordCreated(r.Context(), records.TableClosingReports)
	writeJSON(w, http.StatusOK, map[string]string{"message": "✅ Datos insertados en la tabla `cierre`"})
}

func (s *Server) latestClosingReport(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.LatestClosingReport(r.Context())
	switch {
	case errors.Is(err, records.ErrNoRows):
		writeJSON(w, http.StatusOK, map[string]string{"message": "No hay datos en la tabla `cierre`"})
	case err != nil:
		s.logStoreError("latest lookup failed", records.TableClosingReports, err)
		writeError(w, http.StatusInternalServerError, "Error al obtener datos de `cierre`")
	default:
		writeJSON(w, http.StatusOK, row)
	}
}

func (s *Server) insertTextReport(w http.ResponseWriter, r *http.Request) {
	var in records.TextReportInput
	if !decodeBody(w, r, &in) {
		return
	}
	texto, err := in.Validate()
	if err != nil {
		writeValidationError(w, msgRequiredTexto, err)
		return
	}
	if err := s.store.InsertTextReport(r.Context(), texto); err != nil {
		s.logStoreError("insert failed", records.TableTextReports, err)
		writeError(w, http.StatusInternalServerError, "Error al insertar informe")
		return
	}
	s.recordCreated(r.Context(), records.TableTextReports)
	writeJSON(w, http.StatusOK, map[string]string{"message": "✅ Informe insertado correctamente"})
}

func (s *Server) listTextReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListTextReports(r.Context())
	if err != nil {
		s.logStoreError("list failed", records.TableTextReports, err)
		writeError(w, http.StatusInternalServerError, "Error al obtener informes")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) logStoreError(msg, table string, err error) {
	s.logger.Error(msg, zap.String("table", table), zap.Error(err))
}

// recordCreated counts the insert and publishes its event. Publish failures
// are logged only; the row is already committed.
func (s *Server) recordCreated(ctx context.Context, table string) {
	metrics.ObserveInsert(table)
	if s.events == nil {
		return
	}

	evt := RecordEvent{
		Type:      EventRecordCreated,
		Table:     table,
		RequestID: RequestID(ctx),
		At:        s.now(),
	}
	if s.idGen != nil {
		id, err := s.idGen.NewID()
		if err != nil {
			s.logger.Warn("generate event id failed", zap.Error(err))
		}
		evt.ID = id
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	msgID, err := s.events.Publish(pubCtx, s.topic, evt)
	if err != nil {
		s.logger.Warn("publish record event failed", zap.String("table", table), zap.Error(err))
		return
	}
	s.logger.Debug("record event published", zap.String("table", table), zap.String("message_id", msgID))
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

// decodeBody decodes a size-limited JSON body into dst and answers 400 or 413
// itself when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return false
		}
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, msg string, err error) {
	body := map[string]any{"error": msg}
	var verr *records.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	writeJSON(w, http.StatusBadRequest, body)
}

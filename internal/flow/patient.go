package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmoreyra/registrobot/internal/models"
)

// Patient flow prompts. Every field is captured as opaque text; age and
// quantity are stored as given.
const (
	msgAskPatientName     = "🩺 ¿Nombre del paciente?"
	msgAskPatientAge      = "¿Edad del paciente?"
	msgAskPatientID       = "¿DNI del paciente?"
	msgAskPatientQuantity = "¿Cantidad a registrar? (ej: sesiones, medicamentos, etc.)"
)

func handlePatientName(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	sess.Set(models.DataKeyName, resp.Body)
	return stepResult{reply: msgAskPatientAge, next: models.StateAge}, nil
}

func handlePatientAge(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	sess.Set(models.DataKeyAge, resp.Body)
	return stepResult{reply: msgAskPatientID, next: models.StateIDNumber}, nil
}

func handlePatientID(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	sess.Set(models.DataKeyIDNumber, resp.Body)
	return stepResult{reply: msgAskPatientQuantity, next: models.StatePatientQuantity}, nil
}

// handlePatientQuantity captures the last field and commits the record.
func handlePatientQuantity(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	record := models.PatientRecord{
		Name:      sess.Get(models.DataKeyName),
		Age:       sess.Get(models.DataKeyAge),
		IDNumber:  sess.Get(models.DataKeyIDNumber),
		Quantity:  resp.Body,
		Timestamp: time.Now(),
		User:      resp.Identity(),
	}
	if err := record.Validate(); err != nil {
		return stepResult{}, fmt.Errorf("invalid patient record: %w", err)
	}

	if err := c.store.AddPatient(record); err != nil {
		return stepResult{}, fmt.Errorf("failed to append patient: %w", err)
	}

	slog.Info("Patient committed", "name", record.Name, "user", record.User)
	reply := fmt.Sprintf(
		"✅ Paciente registrado:\nNombre: %s\nEdad: %s\nDNI: %s\nCantidad: %s\nFecha: %s\nUsuario: %s",
		record.Name, record.Age, record.IDNumber, record.Quantity,
		record.Timestamp.Format(msgTimestampLayout), record.User,
	)
	return stepResult{reply: reply, done: true}, nil
}

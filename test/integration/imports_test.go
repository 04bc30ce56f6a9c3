//go:build integration

package integration

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/domain/documents"
	"github.com/clinic/clinic/internal/domain/importer"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperrors"
)

func TestSpreadsheetImport(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	loc := time.FixedZone("WET", 0)

	clientsSvc := clients.NewService(clients.NewRepoPG(globalPool), db.NewTxManager(globalPool), nil, nil)
	doctorsSvc := doctors.NewService(doctors.NewRepoPG(globalPool), nil, nil)
	roomsSvc := rooms.NewService(rooms.NewRepoPG(globalPool), nil)
	apptsSvc := newAppointmentsService(db.NewTxManager(globalPool))
	svc := importer.NewService(clientsSvc, doctorsSvc, roomsSvc, apptsSvc, nil, loc, zerolog.Nop())

	createTestClient(t, ctx, "Gabriel Faria")
	createTestDoctor(t, ctx, "Dra. Inês Moura")
	createTestRoom(t, ctx, "Gabinete A")

	clientsCSV := "Nome;Data Nascimento;E-mail;Telefone\n" +
		"Gabriel Faria;02/02/1990;;\n" +
		"Helena Cruz;15/07/1978;helena@example.com;912345678\n" +
		"helena cruz;15/07/1978;;\n" +
		"Joana Lopes;;sem-email;\n"
	table, err := importer.ReadTable("clientes.csv", strings.NewReader(clientsCSV))
	require.NoError(t, err)

	res, err := svc.ImportClients(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 2, res.Skipped)

	joana, err := clientsSvc.FindByName(ctx, "Joana Lopes")
	require.NoError(t, err)
	assert.Nil(t, joana.Email)
	assert.Equal(t, "1900-01-01", joana.BirthDate.String())

	apptsCSV := "Cliente,Médico,Sala,Data,Hora,Estado\n" +
		"Helena Cruz,Dra. Inês Moura,Gabinete A,03/03/2025,09:30,realizada\n" +
		"Joana Lopes,dra. inês moura,Sala Fantasma,04/03/2025,,\n" +
		"Desconhecido,Dra. Inês Moura,,05/03/2025,10:00,\n"
	table, err = importer.ReadTable("consultas.csv", strings.NewReader(apptsCSV))
	require.NoError(t, err)

	res, err = svc.ImportAppointments(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "row 4")

	items, total, err := appointments.NewRepoPG(globalPool).Search(ctx, appointments.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	first := items[0]
	assert.True(t, first.Date.Equal(time.Date(2025, 3, 3, 9, 30, 0, 0, loc)))
	require.NotNil(t, first.RoomName)
	assert.Equal(t, "Gabinete A", *first.RoomName)
	assert.Nil(t, items[1].RoomID)
	assert.Equal(t, 10, items[1].Date.In(loc).Hour())
}

func TestDocumentsLifecycle(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	docsRepo := documents.NewRepoPG(globalPool)
	clientsSvc := clients.NewService(clients.NewRepoPG(globalPool), db.NewTxManager(globalPool), nil,
		documents.NewPurger(docsRepo, store, nil, zerolog.Nop()))
	svc := documents.NewService(docsRepo, store, clientsSvc, nil, nil, zerolog.Nop())

	owner := createTestClient(t, ctx, "Luís Teixeira")
	other := createTestClient(t, ctx, "Marta Silva")

	doc, err := svc.Upload(ctx, owner.ID, "relatório.pdf", "application/pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("%PDF-1.4 body")), doc.Size)

	items, total, err := svc.List(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, doc.ID, items[0].ID)

	_, _, err = svc.Download(ctx, other.ID, doc.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))

	got, body, err := svc.Download(ctx, owner.ID, doc.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(content))
	assert.Equal(t, doc.SHA256, got.SHA256)

	require.NoError(t, svc.Delete(ctx, owner.ID, doc.ID))
	_, err = store.Get(ctx, doc.StorageKey)
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)

	// Removing the client cascades to its remaining documents and their files.
	scan, err := svc.Upload(ctx, other.ID, "scan.png", "image/png", strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, clientsSvc.DeleteClient(ctx, other.ID))
	_, total, err = docsRepo.ListByClient(ctx, other.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	_, err = store.Get(ctx, scan.StorageKey)
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	assert.Equal(t, 0, store.Len())
}

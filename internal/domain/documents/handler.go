package documents

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the client document routes. Every role may use
// them.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clients/:id/documents", h.ListDocuments)
	api.POST("/clients/:id/documents", h.UploadDocument)
	api.GET("/clients/:id/documents/:doc", h.DownloadDocument)
	api.DELETE("/clients/:id/documents/:doc", h.DeleteDocument)
}

func ids(c echo.Context) (clientID, docID uuid.UUID, err error) {
	clientID, err = uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if c.Param("doc") != "" {
		docID, err = uuid.Parse(c.Param("doc"))
		if err != nil {
			return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
		}
	}
	return clientID, docID, nil
}

func (h *Handler) UploadDocument(c echo.Context) error {
	clientID, _, err := ids(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if file.Size > blobstore.MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, blobstore.ErrFileTooLarge.Error())
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	d, err := h.svc.Upload(c.Request().Context(), clientID, file.Filename, file.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	clientID, _, err := ids(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), clientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Document{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

func (h *Handler) DownloadDocument(c echo.Context) error {
	clientID, docID, err := ids(c)
	if err != nil {
		return err
	}
	d, rc, err := h.svc.Download(c.Request().Context(), clientID, docID)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	defer rc.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(d.Size, 10))
	return c.Stream(http.StatusOK, d.ContentType, rc)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	clientID, docID, err := ids(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), clientID, docID); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

package v1

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/infrastructure/api/middleware"
)

// MaxImageBytes caps an uploaded image.
const MaxImageBytes = 20 << 20

// readImage reads an uploaded image. Multipart requests carry it in the
// named form field; any other request carries it as the raw body.
func readImage(w http.ResponseWriter, req *http.Request, field string) (service.Source, error) {
	req.Body = http.MaxBytesReader(w, req.Body, MaxImageBytes)

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		return readFormImage(req, field)
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return service.Source{}, readError(err)
	}
	if len(data) == 0 {
		return service.Source{}, middleware.NewAPIError(http.StatusBadRequest, "image body is empty", nil)
	}
	return service.FromBytes(data), nil
}

func readFormImage(req *http.Request, field string) (service.Source, error) {
	file, _, err := req.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.Source{}, err
		}
		return service.Source{}, middleware.NewAPIError(http.StatusBadRequest, fmt.Sprintf("form field %q is required", field), err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.Source{}, readError(err)
	}
	if len(data) == 0 {
		return service.Source{}, middleware.NewAPIError(http.StatusBadRequest, fmt.Sprintf("form field %q is empty", field), nil)
	}
	return service.FromBytes(data), nil
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return middleware.NewAPIError(http.StatusBadRequest, "read image", err)
}

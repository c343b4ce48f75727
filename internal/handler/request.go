package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/file"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/pkg/nullable"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			name, _, _ = strings.Cut(f.Tag.Get("form"), ",")
		}
		return name
	})
	v.RegisterCustomTypeFunc(nullableValue,
		nullable.Value[string]{},
		nullable.Value[int]{},
		nullable.Value[int64]{},
		nullable.Value[bool]{},
		nullable.Value[decimal.Decimal]{},
	)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return v
}

// nullableValue exposes the inner value of a set nullable field; unset and
// null fields validate as absent.
func nullableValue(field reflect.Value) any {
	switch v := field.Interface().(type) {
	case nullable.Value[string]:
		return v.Ptr()
	case nullable.Value[int]:
		return v.Ptr()
	case nullable.Value[int64]:
		return v.Ptr()
	case nullable.Value[bool]:
		return v.Ptr()
	case nullable.Value[decimal.Decimal]:
		if p := v.Ptr(); p != nil {
			return p.InexactFloat64()
		}
	}
	return nil
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

// decodeJSON reads the request body into dst and validates it. An empty
// body validates the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("Invalid request body")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fe.Field()+": "+problem(fe))
	}
	return badRequest(strings.Join(issues, "; "))
}

func problem(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Map, reflect.Array:
		unit = " items"
	}
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + unit
	case "max":
		return "must be at most " + fe.Param() + unit
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email"
	case "numeric", "number":
		return "must be a valid number"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(name + ": must be a positive integer")
	}
	return id, nil
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, name string) (*int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, badRequest(name + ": must be a valid number")
	}
	return &v, nil
}

// pageParams reads page and limit; invalid values fall back to defaults.
func pageParams(r *http.Request) pagination.Params {
	var p pagination.Params
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = v
	}
	return p.Normalize()
}

// maxMultipartMemory is the in-memory part of a multipart form; the rest
// spills to temporary files.
const maxMultipartMemory = 8 << 20

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return badRequest("Request must be multipart/form-data")
		}
		return badRequest("Invalid multipart form")
	}
	return nil
}

// formUploads opens the files of a multipart field. The returned closer
// releases every opened file.
func formUploads(r *http.Request, field string) ([]file.Upload, func(), error) {
	var (
		headers = r.MultipartForm.File[field]
		files   = make([]multipart.File, 0, len(headers))
		uploads = make([]file.Upload, 0, len(headers))
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, errors.Wrapf(err, "open %s", field)
		}
		files = append(files, f)
		uploads = append(uploads, file.Upload{
			Body:        f,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		})
	}
	return uploads, closeAll, nil
}

// formValue returns a trimmed multipart field and whether it was sent.
func formValue(r *http.Request, name string) (string, bool) {
	vs, ok := r.MultipartForm.Value[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return strings.TrimSpace(vs[0]), true
}

package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/storepos/internal/license"
	"github.com/storepos/pkg/models"
)

// ErrNotFound is returned when the data service has no such record.
var ErrNotFound = errors.New("pos: not found")

// ErrBadCredentials is returned by Authenticate on a 401.
var ErrBadCredentials = errors.New("pos: invalid username or password")

// RemoteDataService implements DataService over the store data service's
// JSON API.
type RemoteDataService struct {
	baseURL string
	http    *http.Client
}

func NewRemoteDataService(baseURL string, timeout time.Duration) *RemoteDataService {
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return &RemoteDataService{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

var _ DataService = (*RemoteDataService)(nil)

type userPayload struct {
	models.User
	Password string `json:"password,omitempty"`
}

func (r *RemoteDataService) Authenticate(ctx context.Context, creds models.Credentials) (models.User, error) {
	var u models.User
	err := r.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, creds, &u)
	var se license.ServiceError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		return models.User{}, ErrBadCredentials
	}
	return u, err
}

func (r *RemoteDataService) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.CategoryID != 0 {
		q.Set("category_id", strconv.FormatInt(f.CategoryID, 10))
	}
	var out []models.Product
	return out, r.do(ctx, http.MethodGet, "/api/v1/products", q, nil, &out)
}

func (r *RemoteDataService) FindProductByCode(ctx context.Context, code string) (models.Product, error) {
	var p models.Product
	return p, r.do(ctx, http.MethodGet, "/api/v1/products/by-code/"+url.PathEscape(code), nil, nil, &p)
}

func (r *RemoteDataService) LowStockProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	return out, r.do(ctx, http.MethodGet, "/api/v1/products/low-stock", nil, nil, &out)
}

func (r *RemoteDataService) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	var out models.Product
	return out, r.do(ctx, http.MethodPost, "/api/v1/products", nil, p, &out)
}

func (r *RemoteDataService) UpdateProduct(ctx context.Context, p models.Product) error {
	return r.do(ctx, http.MethodPut, "/api/v1/products/"+strconv.FormatInt(p.ID, 10), nil, p, nil)
}

func (r *RemoteDataService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	return out, r.do(ctx, http.MethodGet, "/api/v1/categories", nil, nil, &out)
}

func (r *RemoteDataService) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	var out models.Category
	return out, r.do(ctx, http.MethodPost, "/api/v1/categories", nil, c, &out)
}

func (r *RemoteDataService) UpdateCategory(ctx context.Context, c models.Category) error {
	return r.do(ctx, http.MethodPut, "/api/v1/categories/"+strconv.FormatInt(c.ID, 10), nil, c, nil)
}

func (r *RemoteDataService) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	return out, r.do(ctx, http.MethodGet, "/api/v1/users", nil, nil, &out)
}

func (r *RemoteDataService) CreateUser(ctx context.Context, u models.User, password string) (models.User, error) {
	var out models.User
	return out, r.do(ctx, http.MethodPost, "/api/v1/users", nil, userPayload{User: u, Password: password}, &out)
}

func (r *RemoteDataService) UpdateUser(ctx context.Context, u models.User, password string) error {
	return r.do(ctx, http.MethodPut, "/api/v1/users/"+strconv.FormatInt(u.ID, 10), nil, userPayload{User: u, Password: password}, nil)
}

func (r *RemoteDataService) StoreSettings(ctx context.Context) (models.StoreSettings, error) {
	var out models.StoreSettings
	return out, r.do(ctx, http.MethodGet, "/api/v1/settings", nil, nil, &out)
}

func (r *RemoteDataService) UpdateStoreSettings(ctx context.Context, s models.StoreSettings) error {
	return r.do(ctx, http.MethodPut, "/api/v1/settings", nil, s, nil)
}

func (r *RemoteDataService) RecordSale(ctx context.Context, sale models.Sale) (models.Sale, error) {
	var out models.Sale
	return out, r.do(ctx, http.MethodPost, "/api/v1/sales", nil, sale, &out)
}

func (r *RemoteDataService) SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	var out []models.Sale
	return out, r.do(ctx, http.MethodGet, "/api/v1/sales", rangeQuery(from, to), nil, &out)
}

func (r *RemoteDataService) FindSale(ctx context.Context, folio string) (models.Sale, error) {
	var out models.Sale
	return out, r.do(ctx, http.MethodGet, "/api/v1/sales/"+url.PathEscape(folio), nil, nil, &out)
}

func (r *RemoteDataService) ProcessReturn(ctx context.Context, ret models.Return) (models.Return, error) {
	var out models.Return
	return out, r.do(ctx, http.MethodPost, "/api/v1/returns", nil, ret, &out)
}

func (r *RemoteDataService) SalesSummary(ctx context.Context, from, to time.Time) (models.SalesSummary, error) {
	var out models.SalesSummary
	return out, r.do(ctx, http.MethodGet, "/api/v1/reports/summary", rangeQuery(from, to), nil, &out)
}

func rangeQuery(from, to time.Time) url.Values {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	return q
}

// do performs one JSON round-trip. A nil out discards the response body.
func (r *RemoteDataService) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	target := r.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return license.NetworkError{Err: err}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return license.NetworkError{Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode >= 400 {
		return license.ServiceError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return license.ServiceError{StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return nil
}

package thingsboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultLimit — максимум строк на один запрос временного ряда.
const DefaultLimit = 86400 * 10

// Client — минимальный клиент REST API ThingsBoard: ровно те ручки,
// которые нужны для обхода сущностей и выгрузки телеметрии.
//
// У платформы разные API для Tenant Admin и Customer даже там, где они
// делают одно и то же (перечисление устройств). Плюс особый публичный
// Customer без учётных данных для public dashboard-ов. Клиент прячет
// эти различия за общими методами.
//
// Если заданы и PublicID, и учётные данные, публичный вход имеет
// приоритет, логин/пароль молча игнорируются.
type Client struct {
	BaseURL  string
	Username string
	Password string
	PublicID string
	HTTP     *http.Client
	Logger   *log.Logger // nil — запросы не логируются

	token     string
	authority string
	userID    string
}

const authorityTenant = "TENANT_ADMIN"

// Login выполняет вход и запоминает токен. Для публичного входа
// authority всегда CUSTOMER, а id пользователя равен PublicID.
func (c *Client) Login(ctx context.Context) error {
	if c.BaseURL == "" {
		return fmt.Errorf("thingsboard: BaseURL is empty")
	}

	var resp struct {
		Token string `json:"token"`
	}
	if c.PublicID != "" {
		err := c.post(ctx, "/api/auth/login/public", map[string]string{"publicId": c.PublicID}, &resp)
		if err != nil {
			return err
		}
		c.token = resp.Token
		c.authority = "CUSTOMER"
		c.userID = c.PublicID
		return nil
	}

	err := c.post(ctx, "/api/auth/login", map[string]string{
		"username": c.Username,
		"password": c.Password,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token

	var user struct {
		Authority  string   `json:"authority"`
		CustomerID EntityID `json:"customerId"`
	}
	if err := c.get(ctx, "/api/auth/user", nil, &user); err != nil {
		return err
	}
	c.authority = user.Authority
	c.userID = user.CustomerID.ID.String()
	return nil
}

// Authority возвращает роль текущего пользователя (после Login).
func (c *Client) Authority() string {
	return c.authority
}

// Assets перечисляет asset-ы, доступные текущему пользователю.
func (c *Client) Assets(ctx context.Context, pageSize, page int) (AssetPage, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))

	path := "/api/tenant/assets"
	if c.authority != authorityTenant {
		path = "/api/customer/" + c.userID + "/assets"
	}
	var out AssetPage
	if err := c.get(ctx, path, q, &out); err != nil {
		return AssetPage{}, err
	}
	return out, nil
}

// Devices перечисляет устройства текущего пользователя, с опциональным
// текстовым фильтром по имени.
func (c *Client) Devices(ctx context.Context, pageSize, page int, textSearch string) (DevicePage, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	if textSearch != "" {
		q.Set("textSearch", textSearch)
	}

	path := "/api/tenant/devices"
	if c.authority != authorityTenant {
		path = "/api/customer/" + c.userID + "/devices"
	}
	var out DevicePage
	if err := c.get(ctx, path, q, &out); err != nil {
		return DevicePage{}, err
	}
	return out, nil
}

// AssetDevices возвращает устройства, входящие в asset
// (связи Contains + карточка каждого устройства).
func (c *Client) AssetDevices(ctx context.Context, asset Asset) ([]Device, error) {
	q := url.Values{}
	q.Set("fromId", asset.ID.ID.String())
	q.Set("fromType", asset.ID.EntityType)
	q.Set("relationType", "Contains")

	var relations []Relation
	if err := c.get(ctx, "/api/relations", q, &relations); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(relations))
	for _, rel := range relations {
		var dev Device
		if err := c.get(ctx, "/api/device/"+rel.To.ID.String(), nil, &dev); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Attributes запрашивает атрибуты сущности по списку ключей.
func (c *Client) Attributes(ctx context.Context, id EntityID, keys []string) ([]Attribute, error) {
	q := url.Values{}
	q.Set("keys", strings.Join(keys, ","))
	var out []Attribute
	path := "/api/plugins/telemetry/" + id.EntityType + "/" + id.ID.String() + "/values/attributes"
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TimeseriesKeys возвращает имена временных рядов сущности.
// Пустой список — у сущности нет телеметрии, это не ошибка.
func (c *Client) TimeseriesKeys(ctx context.Context, id EntityID) ([]string, error) {
	var keys []string
	path := "/api/plugins/telemetry/" + id.EntityType + "/" + id.ID.String() + "/keys/timeseries"
	if err := c.get(ctx, path, nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Timeseries выгружает временные ряды сущности за интервал.
// Границы обрезаются до миллисекунд — такова гранулярность API.
// Пустой ответ (нет ни одного ключа) — nil-карта, не ошибка.
func (c *Client) Timeseries(ctx context.Context, id EntityID, keys []string, from, to time.Time, limit int) (map[string][]TsValue, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("keys", strings.Join(keys, ","))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("startTs", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("endTs", strconv.FormatInt(to.UnixMilli(), 10))

	var out map[string][]TsValue
	path := "/api/plugins/telemetry/" + id.EntityType + "/" + id.ID.String() + "/values/timeseries"
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// do выполняет запрос и декодирует JSON-ответ. Любой не-2xx статус —
// ошибка с телом ответа: пусть вызывающий сам решает, что с ней делать.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint, err := joinURL(c.BaseURL, path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("thingsboard: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("thingsboard: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Printf("TB error: %v (elapsed %s)", err, time.Since(start))
		}
		return fmt.Errorf("thingsboard: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if c.Logger != nil {
		c.Logger.Printf("TB %s %s -> %s (%s)", method, req.URL.Path, resp.Status, time.Since(start))
	}

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("thingsboard: %s %s: status=%s body=%s",
			method, path, resp.Status, strings.TrimSpace(string(data)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("thingsboard: %s %s: decode response: %w", method, path, err)
	}
	return nil
}

func joinURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("thingsboard: parse base URL: %w", err)
	}
	joined, err := url.JoinPath(u.String(), path)
	if err != nil {
		return "", fmt.Errorf("thingsboard: join path: %w", err)
	}
	return joined, nil
}

package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"buyone/internal/pkg/constants"
	"buyone/internal/pkg/httpclient"
	"buyone/internal/service/checkout/port"

	"github.com/pkg/errors"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// InventoryHTTPAdapter 实现了 port.InventoryService 接口。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewInventoryHTTPAdapter 创建适配器。baseURL 为空时通过 client.Resolver 在 Nacos 中发现 product-service。
func NewInventoryHTTPAdapter(client *httpclient.Client, baseURL string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

var _ port.InventoryService = (*InventoryHTTPAdapter)(nil)

func (a *InventoryHTTPAdapter) Reserve(ctx context.Context, orderNumber string, line port.ReservationLine) (string, error) {
	req := map[string]interface{}{
		"productId":   line.ProductID,
		"quantity":    line.Quantity,
		"orderNumber": orderNumber,
	}
	var data struct {
		ReservationID string `json:"reservationId"`
	}
	if err := a.call(ctx, constants.InventoryReservePath, req, &data); err != nil {
		return "", err
	}
	return data.ReservationID, nil
}

func (a *InventoryHTTPAdapter) Release(ctx context.Context, reservationID string) error {
	return a.call(ctx, constants.InventoryReleasePath, map[string]string{"reservationId": reservationID}, nil)
}

func (a *InventoryHTTPAdapter) Commit(ctx context.Context, orderNumber string) (int64, error) {
	var data struct {
		Committed int64 `json:"committed"`
	}
	err := a.call(ctx, constants.InventoryCommitPath+url.PathEscape(orderNumber), nil, &data)
	return data.Committed, err
}

func (a *InventoryHTTPAdapter) ReleaseOrder(ctx context.Context, orderNumber string) (int64, error) {
	var data struct {
		ReleasedQuantity int64 `json:"releasedQuantity"`
	}
	err := a.call(ctx, constants.InventoryReleaseOrderPath+url.PathEscape(orderNumber), nil, &data)
	return data.ReleasedQuantity, err
}

func (a *InventoryHTTPAdapter) call(ctx context.Context, path string, in, data interface{}) error {
	var resp envelope
	var err error
	if a.baseURL != "" {
		err = a.client.PostJSON(ctx, a.baseURL+path, in, &resp)
	} else {
		err = a.client.CallService(ctx, constants.ProductService, path, in, &resp)
	}
	if err != nil {
		return translate(err)
	}
	if data != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, data); err != nil {
			return errors.Wrap(err, "decode inventory response")
		}
	}
	return nil
}

// translate 把库存服务的错误码映射为端口层错误。
func translate(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	var body envelope
	_ = json.Unmarshal(statusErr.Body, &body)
	switch body.Code {
	case "OUT_OF_STOCK":
		return port.ErrOutOfStock
	case "PRODUCT_NOT_FOUND":
		return port.ErrUnknownProduct
	default:
		if body.Message != "" {
			return errors.Wrap(err, body.Message)
		}
		return err
	}
}

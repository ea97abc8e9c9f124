package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

// Stripe limits metadata to 50 keys with values of at most 500 characters.
const (
	maxMetadataKeys     = 50
	maxMetadataValueLen = 500
)

const (
	keyUserID          = "userId"
	keyRestaurantID    = "restaurantId"
	keyDeliveryDetails = "deliveryDetails"
	keyCartItems       = "cartItems"
)

var ErrCorruptMetadata = errors.New("corrupt session metadata")

var errMetadataTooLarge = errors.New("order data exceeds session metadata limits")

// OrderData is everything needed to materialize an order, as carried by the
// session metadata.
type OrderData struct {
	UserID          string
	RestaurantID    string
	DeliveryDetails domain.DeliveryDetails
	CartItems       []domain.CartItem
}

// EncodeMetadata serializes order data into provider metadata. Long values
// are split over continuation keys ("cartItems_1", "cartItems_2", ...).
func EncodeMetadata(data OrderData) (map[string]string, error) {
	details, err := json.Marshal(data.DeliveryDetails)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery details: %w", err)
	}
	items, err := json.Marshal(data.CartItems)
	if err != nil {
		return nil, fmt.Errorf("marshal cart items: %w", err)
	}

	md := map[string]string{
		keyUserID:       data.UserID,
		keyRestaurantID: data.RestaurantID,
	}
	putChunked(md, keyDeliveryDetails, string(details))
	putChunked(md, keyCartItems, string(items))

	if len(md) > maxMetadataKeys {
		return nil, errMetadataTooLarge
	}
	for _, v := range md {
		if len([]rune(v)) > maxMetadataValueLen {
			return nil, errMetadataTooLarge
		}
	}

	return md, nil
}

// DecodeMetadata is the inverse of EncodeMetadata. Any missing, unparsable
// or out-of-range field yields ErrCorruptMetadata.
func DecodeMetadata(md map[string]string) (*OrderData, error) {
	data := &OrderData{
		UserID:       strings.TrimSpace(md[keyUserID]),
		RestaurantID: strings.TrimSpace(md[keyRestaurantID]),
	}
	if data.UserID == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptMetadata, keyUserID)
	}
	if data.RestaurantID == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptMetadata, keyRestaurantID)
	}
	if _, err := uuid.Parse(data.RestaurantID); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, keyRestaurantID, err)
	}

	details, ok := getChunked(md, keyDeliveryDetails)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptMetadata, keyDeliveryDetails)
	}
	if err := json.Unmarshal([]byte(details), &data.DeliveryDetails); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, keyDeliveryDetails, err)
	}

	items, ok := getChunked(md, keyCartItems)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptMetadata, keyCartItems)
	}
	if err := json.Unmarshal([]byte(items), &data.CartItems); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, keyCartItems, err)
	}
	if len(data.CartItems) == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrCorruptMetadata, keyCartItems)
	}
	for _, item := range data.CartItems {
		if item.MenuID == "" || item.Quantity < 1 || item.Price < 0 {
			return nil, fmt.Errorf("%w: invalid cart line %q", ErrCorruptMetadata, item.MenuID)
		}
	}

	return data, nil
}

func putChunked(md map[string]string, key, value string) {
	runes := []rune(value)
	for i := 0; ; i++ {
		n := min(len(runes), maxMetadataValueLen)
		md[chunkKey(key, i)] = string(runes[:n])
		runes = runes[n:]
		if len(runes) == 0 {
			return
		}
	}
}

func getChunked(md map[string]string, key string) (string, bool) {
	first, ok := md[key]
	if !ok || first == "" {
		return "", false
	}

	var b strings.Builder
	b.WriteString(first)
	for i := 1; ; i++ {
		part, ok := md[chunkKey(key, i)]
		if !ok {
			break
		}
		b.WriteString(part)
	}
	return b.String(), true
}

func chunkKey(key string, i int) string {
	if i == 0 {
		return key
	}
	return fmt.Sprintf("%s_%d", key, i)
}

package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

type RestaurantRepository struct {
	db *sql.DB
}

func NewRestaurantRepository(db *sql.DB) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

const restaurantColumns = `id, owner_id, name, description, address, city, country,
		delivery_time, cuisines, image_url, is_active, created_at`

func scanRestaurant(row interface{ Scan(...any) error }) (*domain.Restaurant, error) {
	var r domain.Restaurant
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Description, &r.Address, &r.City, &r.Country,
		&r.DeliveryTime, pq.Array(&r.Cuisines), &r.ImageURL, &r.IsActive, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetWithMenu returns the restaurant with its current menu items and their
// options populated, or nil when it does not exist.
func (r *RestaurantRepository) GetWithMenu(ctx context.Context, id string) (*domain.Restaurant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	restaurant, err := scanRestaurant(r.db.QueryRowContext(ctx, `
		SELECT `+restaurantColumns+`
		FROM restaurants
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.MenuItemsByRestaurant(ctx, restaurant.ID)
	if err != nil {
		return nil, err
	}
	restaurant.Menus = items

	return restaurant, nil
}

// GetByOwner returns the owner's restaurant, or nil. Owners have at most one.
func (r *RestaurantRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Restaurant, error) {
	restaurant, err := scanRestaurant(r.db.QueryRowContext(ctx, `
		SELECT `+restaurantColumns+`
		FROM restaurants
		WHERE owner_id = $1
	`, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return restaurant, nil
}

func (r *RestaurantRepository) MenuItemsByRestaurant(ctx context.Context, restaurantID string) ([]domain.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, restaurant_id, name, description, price, category, image, is_available
		FROM menu_items
		WHERE restaurant_id = $1
		ORDER BY created_at, id
	`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.MenuItem{}
	index := make(map[string]int)
	var ids []string

	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.RestaurantID, &item.Name, &item.Description,
			&item.Price, &item.Category, &item.Image, &item.IsAvailable); err != nil {
			return nil, err
		}
		item.Options = []domain.Option{}
		index[item.ID] = len(items)
		ids = append(ids, item.ID)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return items, nil
	}

	optionRows, err := r.db.QueryContext(ctx, `
		SELECT id, menu_item_id, name, price, is_required
		FROM options
		WHERE menu_item_id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = optionRows.Close() }()

	for optionRows.Next() {
		var opt domain.Option
		if err := optionRows.Scan(&opt.ID, &opt.MenuItemID, &opt.Name, &opt.Price, &opt.IsRequired); err != nil {
			return nil, err
		}
		i, ok := index[opt.MenuItemID]
		if !ok {
			continue
		}
		items[i].Options = append(items[i].Options, opt)
	}

	if err := optionRows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

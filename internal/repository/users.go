package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/realmbuilder/internal/domain/model"
	"github.com/bigkaa/realmbuilder/internal/domain/realm"
)

// UserRepository — доступ к таблицам users и user_emails.
type UserRepository interface {
	// Create сохраняет пользователя вместе с адресами в одной транзакции.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по UUID записи.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByKeycloakID возвращает пользователя коллекции по идентификатору в IdP.
	GetByKeycloakID(ctx context.Context, collection, keycloakUserID string) (*model.User, error)
	// FindByIdentifier ищет пользователя коллекции по значению поля идентификации.
	FindByIdentifier(ctx context.Context, collection string, field realm.Field, value string) (*model.User, error)
	// MarkEmailVerified отмечает подтверждённым ровно адрес email пользователя.
	MarkEmailVerified(ctx context.Context, userID, email string) error
	// Count возвращает количество пользователей коллекции.
	Count(ctx context.Context, collection string) (int, error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `u.id, u.collection, u.realm, u.client_id, u.keycloak_user_id,
	u.username, u.phone, u.first_name, u.last_name, u.created_at, u.updated_at`

// scanUser сканирует строку результата в модель User (без адресов).
func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	var firstName, lastName *string
	err := row.Scan(
		&u.ID, &u.Collection, &u.Realm, &u.ClientID, &u.KeycloakUserID,
		&u.Username, &u.Phone, &firstName, &lastName, &u.CreatedAt, &u.UpdatedAt,
	)
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}
	return u, err
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return runInTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (id, collection, realm, client_id, keycloak_user_id,
				username, phone, first_name, last_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at`,
			u.ID, u.Collection, u.Realm, u.ClientID, u.KeycloakUserID,
			u.Username, u.Phone, u.FirstName, u.LastName,
		).Scan(&u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: пользователь с таким именем или телефоном уже существует", ErrConflict)
			}
			return fmt.Errorf("ошибка создания пользователя: %w", err)
		}

		for i, e := range u.Emails {
			_, err := tx.Exec(ctx, `
				INSERT INTO user_emails (user_id, email, verified, position)
				VALUES ($1, $2, $3, $4)`,
				u.ID, e.Address, e.Verified, i,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: адрес %s указан дважды", ErrConflict, e.Address)
				}
				return fmt.Errorf("ошибка сохранения адреса: %w", err)
			}
		}
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE u.id = $1`, userColumns)
	return r.getOne(ctx, query, id)
}

func (r *userRepo) GetByKeycloakID(ctx context.Context, collection, keycloakUserID string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE u.collection = $1 AND u.keycloak_user_id = $2`, userColumns)
	return r.getOne(ctx, query, collection, keycloakUserID)
}

func (r *userRepo) FindByIdentifier(ctx context.Context, collection string, field realm.Field, value string) (*model.User, error) {
	var query string
	switch field {
	case realm.FieldUsername:
		query = fmt.Sprintf(`SELECT %s FROM users u WHERE u.collection = $1 AND u.username = $2`, userColumns)
	case realm.FieldPhone:
		query = fmt.Sprintf(`SELECT %s FROM users u WHERE u.collection = $1 AND u.phone = $2`, userColumns)
	case realm.FieldEmail:
		query = fmt.Sprintf(`
			SELECT %s FROM users u
			JOIN user_emails e ON e.user_id = u.id
			WHERE u.collection = $1 AND lower(e.email) = lower($2)
			LIMIT 1`, userColumns)
	default:
		return nil, fmt.Errorf("неизвестное поле идентификации %q", field)
	}
	return r.getOne(ctx, query, collection, strings.TrimSpace(value))
}

func (r *userRepo) MarkEmailVerified(ctx context.Context, userID, email string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_emails SET verified = TRUE
		WHERE user_id = $1 AND lower(email) = lower($2)`,
		userID, email,
	)
	if err != nil {
		return fmt.Errorf("ошибка подтверждения адреса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := r.db.Exec(ctx, `UPDATE users SET updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE collection = $1`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}

// getOne загружает одного пользователя и его адреса.
func (r *userRepo) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	emails, err := r.emails(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Emails = emails
	return u, nil
}

func (r *userRepo) emails(ctx context.Context, userID string) ([]model.Email, error) {
	rows, err := r.db.Query(ctx, `
		SELECT email, verified FROM user_emails
		WHERE user_id = $1
		ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения адресов: %w", err)
	}
	defer rows.Close()

	var result []model.Email
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(&e.Address, &e.Verified); err != nil {
			return nil, fmt.Errorf("ошибка сканирования адреса: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

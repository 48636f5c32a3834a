package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	SchoolID     null.String    `db:"school_id"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		SchoolID:     r.SchoolID.String,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
	if r.IsActive.Valid {
		usr.SetActive(r.IsActive.Bool)
	}
	return usr
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		SchoolID:     null.NewString(usr.SchoolID, usr.SchoolID != ""),
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
	if usr.IsActive != nil {
		row.IsActive = null.BoolFrom(*usr.IsActive)
	}
	return row
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := `SELECT username, email FROM "user" WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		query += ` AND id <> ALL($3)`
		args = append(args, pq.Array(ids))
	}

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "scanning user")
		}
		if username != "" && uname == username {
			return user.ErrUsernameExists
		}
		if email != "" && mail == email {
			return user.ErrEmailExists
		}
	}
	return rows.Err()
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
		INSERT INTO "user" (id, name, username, email, school_id, is_active, roles, password_hash, created_at, updated_at)
		VALUES (:id, :name, :username, :email, :school_id, :is_active, :roles, :password_hash, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, newUserRow(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE id = $1`, id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE username = $1`, username)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE email = $1`, email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE username = $1 OR email = $1`, username)
}

func (repo userRepository) getUser(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "querying user")
	}
	return row.toUser(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	conds := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if filter.Roles != nil {
		conds = append(conds, fmt.Sprintf("roles && %s", arg(pq.Array(filter.Roles))))
	}
	if filter.SchoolID != "" {
		conds = append(conds, fmt.Sprintf("school_id = %s", arg(filter.SchoolID)))
	}
	if filter.IsActive != nil {
		conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom)))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo)))
	}

	query := `SELECT * FROM "user"`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + userOrderBy(filter.Orderings)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

// userOrderableFields whitelists the columns FilterUsers may sort on.
var userOrderableFields = map[string]bool{
	"name":       true,
	"username":   true,
	"email":      true,
	"created_at": true,
	"last_login": true,
}

func userOrderBy(orderings []core.DBOrdering) string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if userOrderableFields[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return "name"
	}
	return strings.Join(clauses, ", ")
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	orig, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}

	if usr.Name != "" {
		orig.Name = usr.Name
	}
	if usr.Username != "" {
		orig.Username = usr.Username
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if usr.Roles != nil {
		orig.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	orig.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE "user"
		SET name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
		    password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	if _, err = repo.db.NamedExecContext(ctx, query, newUserRow(orig)); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return orig, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}

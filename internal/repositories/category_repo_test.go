package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"orgstock/internal/common"
	"orgstock/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func stringPtr(s string) *string {
	return &s
}

type CategoryRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    CategoryRepository
	orgID   uuid.UUID
	context context.Context
}

func (suite *CategoryRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewCategoryRepo(mock)
	suite.orgID = uuid.New()
	suite.context = context.Background()
}

func (suite *CategoryRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestCategoryRepoTestSuite(t *testing.T) {
	suite.Run(t, new(CategoryRepoTestSuite))
}

func (suite *CategoryRepoTestSuite) TestCreate_Success() {
	now := time.Now()
	category := &models.Category{ID: uuid.New(), OrgID: suite.orgID, Name: "Beverages", Description: stringPtr("Drinks")}

	suite.mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs(category.ID, category.OrgID, category.Name, category.Description, category.ParentID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err := suite.repo.Create(suite.context, category)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), now, category.CreatedAt)
}

func (suite *CategoryRepoTestSuite) TestCreate_DuplicateNameIsNameConflict() {
	category := &models.Category{ID: uuid.New(), OrgID: suite.orgID, Name: "Beverages"}

	suite.mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs(category.ID, category.OrgID, category.Name, category.Description, category.ParentID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "categories_org_name_key"})

	err := suite.repo.Create(suite.context, category)
	assert.ErrorIs(suite.T(), err, common.ErrNameConflict)
}

func (suite *CategoryRepoTestSuite) TestGetByID_NotFound() {
	id := uuid.New()
	suite.mock.ExpectQuery(`SELECT .+ FROM categories WHERE org_id = \$1 AND id = \$2`).
		WithArgs(suite.orgID, id).
		WillReturnError(pgx.ErrNoRows)

	category, err := suite.repo.GetByID(suite.context, suite.orgID, id)
	assert.Nil(suite.T(), category)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *CategoryRepoTestSuite) TestGetByID_Success() {
	id := uuid.New()
	parent := uuid.New()
	now := time.Now()
	suite.mock.ExpectQuery(`SELECT .+ FROM categories WHERE org_id = \$1 AND id = \$2`).
		WithArgs(suite.orgID, id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "name", "description", "parent_id", "created_at", "updated_at"}).
			AddRow(id, suite.orgID, "Cola", stringPtr("Fizzy"), &parent, now, now))

	category, err := suite.repo.GetByID(suite.context, suite.orgID, id)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Cola", category.Name)
	assert.Equal(suite.T(), parent, *category.ParentID)
}

func (suite *CategoryRepoTestSuite) TestUpdate_MissingRowIsNotFound() {
	category := &models.Category{ID: uuid.New(), OrgID: suite.orgID, Name: "Snacks"}
	suite.mock.ExpectQuery(`UPDATE categories`).
		WithArgs(category.Name, category.Description, category.ParentID, category.OrgID, category.ID).
		WillReturnError(pgx.ErrNoRows)

	err := suite.repo.Update(suite.context, category)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *CategoryRepoTestSuite) TestDelete_NoRowsIsNotFound() {
	id := uuid.New()
	suite.mock.ExpectExec(`DELETE FROM categories`).
		WithArgs(suite.orgID, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := suite.repo.Delete(suite.context, suite.orgID, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *CategoryRepoTestSuite) TestList_OrderedByName() {
	now := time.Now()
	suite.mock.ExpectQuery(`SELECT .+ FROM categories WHERE org_id = \$1 ORDER BY name ASC`).
		WithArgs(suite.orgID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "name", "description", "parent_id", "created_at", "updated_at"}).
			AddRow(uuid.New(), suite.orgID, "Beverages", nil, nil, now, now).
			AddRow(uuid.New(), suite.orgID, "Snacks", nil, nil, now, now))

	categories, err := suite.repo.List(suite.context, suite.orgID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), categories, 2)
	assert.Equal(suite.T(), "Beverages", categories[0].Name)
	assert.Nil(suite.T(), categories[0].ParentID)
}

func (suite *CategoryRepoTestSuite) TestList_DatabaseError() {
	suite.mock.ExpectQuery(`SELECT .+ FROM categories`).
		WithArgs(suite.orgID).
		WillReturnError(errors.New("connection reset"))

	_, err := suite.repo.List(suite.context, suite.orgID)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "connection reset")
}

func (suite *CategoryRepoTestSuite) TestCountChildren() {
	id := uuid.New()
	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM categories WHERE org_id = \$1 AND parent_id = \$2`).
		WithArgs(suite.orgID, id).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := suite.repo.CountChildren(suite.context, suite.orgID, id)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, count)
}

func (suite *CategoryRepoTestSuite) TestExistingIDs_EmptyInputSkipsQuery() {
	ids, err := suite.repo.ExistingIDs(suite.context, suite.orgID, nil)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), ids)
}

func (suite *CategoryRepoTestSuite) TestExistingIDs() {
	known, unknown := uuid.New(), uuid.New()
	ids := []uuid.UUID{known, unknown}
	suite.mock.ExpectQuery(`SELECT id FROM categories WHERE org_id = \$1 AND id = ANY\(\$2\)`).
		WithArgs(suite.orgID, ids).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(known))

	existing, err := suite.repo.ExistingIDs(suite.context, suite.orgID, ids)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []uuid.UUID{known}, existing)
}

func (suite *CategoryRepoTestSuite) TestLockHierarchy() {
	suite.mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("categories:" + suite.orgID.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.NoError(suite.T(), suite.repo.LockHierarchy(suite.context, suite.orgID))
}

package main

import (
	"errors"
	"time"

	"finboard/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound covers both "row absent" and "row not owned by caller":
// the two are indistinguishable on purpose, so that probing ids owned by
// someone else behaves exactly like probing ids that never existed.
var ErrNotFound = errors.New("not found")

// EntitySummary is the {id,name} projection used for account and
// category listings.
type EntitySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeletedID is one entry of the deleted-id list returned by delete
// operations.
type DeletedID struct {
	ID string `json:"id"`
}

// TransactionView is a transaction row joined with its account name
// (inner join, this is what enforces ownership) and category name
// (left join, categories are optional).
type TransactionView struct {
	ID         string    `json:"id"`
	Payee      string    `json:"payee"`
	Amount     int64     `json:"amount"`
	Location   *string   `json:"location"`
	Date       time.Time `json:"date"`
	Category   *string   `gorm:"column:category" json:"category"`
	CategoryID *string   `gorm:"column:category_id" json:"categoryId"`
	Account    string    `gorm:"column:account" json:"account"`
	AccountID  string    `gorm:"column:account_id" json:"accountId"`
}

// TransactionInput is the validated payload for transaction creation and
// update. Ownership of AccountID (and CategoryID when set) is always
// re-derived from existing rows, never taken from the payload.
type TransactionInput struct {
	Payee      string
	Amount     int64
	Date       time.Time
	AccountID  string
	CategoryID *string
	Location   *string
	ExternalID *string
}

const transactionViewColumns = `transactions.id, transactions.payee, transactions.amount, transactions.location, transactions.date,
	categories.name AS category, transactions.category_id, accounts.name AS account, transactions.account_id`

// Every function below takes the authenticated owner's user id as its
// first argument and constrains all SQL to rows that belong to that
// owner, directly or through the account join. There is no variant
// without the owner filter.

func listAccounts(ownerID uint) ([]EntitySummary, error) {
	out := []EntitySummary{}
	err := db.Model(&models.Account{}).
		Select("id, name").
		Where("user_id = ?", ownerID).
		Find(&out).Error
	return out, err
}

func getAccount(ownerID uint, id string) (*EntitySummary, error) {
	var s EntitySummary
	err := db.Model(&models.Account{}).
		Select("id, name").
		Where("id = ? AND user_id = ?", id, ownerID).
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func createAccount(ownerID uint, name string) (*models.Account, error) {
	a := &models.Account{ID: uuid.NewString(), UserID: ownerID, Name: name}
	if err := db.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func updateAccount(ownerID uint, id, name string) (*models.Account, error) {
	var a models.Account
	err := db.Where("id = ? AND user_id = ?", id, ownerID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Name = name
	if err := db.Save(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// deleteAccount removes one owned account. Dependent transactions go
// with it (ON DELETE CASCADE): a transaction without its account has no
// owner and could never be listed again anyway.
func deleteAccount(ownerID uint, id string) error {
	res := db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Account{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// bulkDeleteAccounts deletes the owned subset of ids and reports exactly
// which ids were removed. Unowned or unknown ids are silently skipped,
// not an error.
func bulkDeleteAccounts(ownerID uint, ids []string) ([]DeletedID, error) {
	deleted := []DeletedID{}
	if len(ids) == 0 {
		return deleted, nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var owned []string
		if err := tx.Model(&models.Account{}).
			Where("user_id = ? AND id IN ?", ownerID, ids).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", owned).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		for _, id := range owned {
			deleted = append(deleted, DeletedID{ID: id})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func listCategories(ownerID uint) ([]EntitySummary, error) {
	out := []EntitySummary{}
	err := db.Model(&models.Category{}).
		Select("id, name").
		Where("user_id = ?", ownerID).
		Find(&out).Error
	return out, err
}

func getCategory(ownerID uint, id string) (*EntitySummary, error) {
	var s EntitySummary
	err := db.Model(&models.Category{}).
		Select("id, name").
		Where("id = ? AND user_id = ?", id, ownerID).
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func createCategory(ownerID uint, name string) (*models.Category, error) {
	cat := &models.Category{ID: uuid.NewString(), UserID: ownerID, Name: name}
	if err := db.Create(cat).Error; err != nil {
		return nil, err
	}
	return cat, nil
}

func updateCategory(ownerID uint, id, name string) (*models.Category, error) {
	var cat models.Category
	err := db.Where("id = ? AND user_id = ?", id, ownerID).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cat.Name = name
	if err := db.Save(&cat).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

// deleteCategory removes one owned category. Dependent transactions keep
// existing with category_id cleared (ON DELETE SET NULL) since the
// reference is optional.
func deleteCategory(ownerID uint, id string) error {
	res := db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Category{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func bulkDeleteCategories(ownerID uint, ids []string) ([]DeletedID, error) {
	deleted := []DeletedID{}
	if len(ids) == 0 {
		return deleted, nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var owned []string
		if err := tx.Model(&models.Category{}).
			Where("user_id = ? AND id IN ?", ownerID, ids).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", owned).Delete(&models.Category{}).Error; err != nil {
			return err
		}
		for _, id := range owned {
			deleted = append(deleted, DeletedID{ID: id})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// listTransactions returns the owner's transactions within [from, to]
// inclusive, newest first (ties broken by id so pagination stays
// stable). An empty accountID means all accounts owned by the caller.
func listTransactions(ownerID uint, from, to time.Time, accountID string) ([]TransactionView, error) {
	out := []TransactionView{}
	q := db.Model(&models.Transaction{}).
		Select(transactionViewColumns).
		Joins("INNER JOIN accounts ON accounts.id = transactions.account_id").
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id").
		Where("accounts.user_id = ?", ownerID).
		Where("transactions.date >= ? AND transactions.date <= ?", from, to)
	if accountID != "" {
		q = q.Where("transactions.account_id = ?", accountID)
	}
	err := q.Order("transactions.date DESC, transactions.id DESC").Find(&out).Error
	return out, err
}

func getTransaction(ownerID uint, id string) (*TransactionView, error) {
	var v TransactionView
	err := db.Model(&models.Transaction{}).
		Select(transactionViewColumns).
		Joins("INNER JOIN accounts ON accounts.id = transactions.account_id").
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id").
		Where("transactions.id = ? AND accounts.user_id = ?", id, ownerID).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func createTransaction(ownerID uint, in TransactionInput) (*models.Transaction, error) {
	t := newTransactionRow(in)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkOwnedAccounts(tx, ownerID, []string{in.AccountID}); err != nil {
			return err
		}
		if err := checkOwnedCategories(tx, ownerID, categoryIDs([]TransactionInput{in})); err != nil {
			return err
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// bulkCreateTransactions inserts all rows or none. Ownership of every
// referenced account (and category) is verified inside the same store
// transaction as the insert.
func bulkCreateTransactions(ownerID uint, ins []TransactionInput) ([]models.Transaction, error) {
	rows := make([]models.Transaction, 0, len(ins))
	for _, in := range ins {
		rows = append(rows, *newTransactionRow(in))
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkOwnedAccounts(tx, ownerID, accountIDs(ins)); err != nil {
			return err
		}
		if err := checkOwnedCategories(tx, ownerID, categoryIDs(ins)); err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func updateTransaction(ownerID uint, id string, in TransactionInput) (*models.Transaction, error) {
	var t models.Transaction
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Transaction{}).
			Select("transactions.*").
			Joins("INNER JOIN accounts ON accounts.id = transactions.account_id").
			Where("transactions.id = ? AND accounts.user_id = ?", id, ownerID).
			Take(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		// the payload may move the transaction to another account or
		// category; both must belong to the caller as well
		if err := checkOwnedAccounts(tx, ownerID, []string{in.AccountID}); err != nil {
			return err
		}
		if err := checkOwnedCategories(tx, ownerID, categoryIDs([]TransactionInput{in})); err != nil {
			return err
		}
		t.Payee = in.Payee
		t.Amount = in.Amount
		t.Location = in.Location
		t.Date = in.Date
		t.AccountID = in.AccountID
		t.CategoryID = in.CategoryID
		if in.ExternalID != nil {
			t.ExternalID = in.ExternalID
		}
		return tx.Save(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// deleteTransaction resolves the owned candidate first, then deletes by
// the resolved id, inside one store transaction. Filtering is by
// transaction id, never by account id.
func deleteTransaction(ownerID uint, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var owned []string
		if err := tx.Model(&models.Transaction{}).
			Joins("INNER JOIN accounts ON accounts.id = transactions.account_id").
			Where("transactions.id = ? AND accounts.user_id = ?", id, ownerID).
			Pluck("transactions.id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return ErrNotFound
		}
		return tx.Where("id IN ?", owned).Delete(&models.Transaction{}).Error
	})
}

// bulkDeleteTransactions computes the owner-authorized id set through
// the account join, then deletes only rows in that set. The two steps
// share one store transaction so the check and the delete cannot be
// interleaved by another call.
func bulkDeleteTransactions(ownerID uint, ids []string) ([]DeletedID, error) {
	deleted := []DeletedID{}
	if len(ids) == 0 {
		return deleted, nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var owned []string
		if err := tx.Model(&models.Transaction{}).
			Joins("INNER JOIN accounts ON accounts.id = transactions.account_id").
			Where("transactions.id IN ? AND accounts.user_id = ?", ids, ownerID).
			Pluck("transactions.id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", owned).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		for _, id := range owned {
			deleted = append(deleted, DeletedID{ID: id})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func newTransactionRow(in TransactionInput) *models.Transaction {
	return &models.Transaction{
		ID:         uuid.NewString(),
		Payee:      in.Payee,
		Amount:     in.Amount,
		Location:   in.Location,
		Date:       in.Date,
		AccountID:  in.AccountID,
		CategoryID: in.CategoryID,
		ExternalID: in.ExternalID,
	}
}

// checkOwnedAccounts fails with ErrNotFound unless every id resolves to
// an account owned by ownerID.
func checkOwnedAccounts(tx *gorm.DB, ownerID uint, ids []string) error {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Account{}).
		Where("user_id = ? AND id IN ?", ownerID, ids).
		Count(&n).Error; err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ErrNotFound
	}
	return nil
}

func checkOwnedCategories(tx *gorm.DB, ownerID uint, ids []string) error {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Category{}).
		Where("user_id = ? AND id IN ?", ownerID, ids).
		Count(&n).Error; err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ErrNotFound
	}
	return nil
}

func accountIDs(ins []TransactionInput) []string {
	out := make([]string, 0, len(ins))
	for _, in := range ins {
		out = append(out, in.AccountID)
	}
	return out
}

func categoryIDs(ins []TransactionInput) []string {
	var out []string
	for _, in := range ins {
		if in.CategoryID != nil && *in.CategoryID != "" {
			out = append(out, *in.CategoryID)
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

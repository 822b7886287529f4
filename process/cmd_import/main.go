package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"finboard/models"
)

// Global DB handle for helper funcs
var db *gorm.DB

var verbose bool

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a drop directory of CSV bank statements and inserts their
// rows as transactions for one of the user's accounts, stamping
// external_id so re-running the import never duplicates a line.
// Optional watch mode keeps the process alive for new files.
func main() {
	dirFlag := flag.String("dir", "statements", "directory to scan for CSV statements")
	userFlag := flag.String("user", "", "username owning the imported transactions")
	accountFlag := flag.String("account", "", "account name to import into (created if missing)")
	dryRun := flag.Bool("dry-run", false, "Parse and report, no DB writes")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-row logging")
	flag.Parse()

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		for _, f := range listStatementFiles(*dirFlag) {
			entries, err := parseStatementFile(filepath.Join(*dirFlag, f))
			if err != nil {
				log.Printf("%s: %v", f, err)
				continue
			}
			log.Printf("%s: %d rows", f, len(entries))
			for _, e := range entries {
				logV("  %s %s amount=%d ref=%s", e.Date.Format(dateLayout), e.Payee, e.Amount, e.Reference)
			}
		}
		return
	}

	if *userFlag == "" || *accountFlag == "" {
		log.Fatal("both -user and -account are required (or use -dry-run)")
	}

	db = mustInitDBFromEnv()
	owner := resolveOwner(*userFlag)
	account := resolveAccount(owner, *accountFlag)
	seen := preloadExternalIDs(account)
	log.Printf("Importing into account %q (user %s), %d lines already imported", account.Name, owner.Username, len(seen))

	for _, f := range listStatementFiles(*dirFlag) {
		importFile(*dirFlag, f, owner, account, seen)
	}

	if *watch {
		if err := watchDirectory(*dirFlag, owner, account, seen); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

func resolveOwner(username string) models.User {
	var u models.User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		log.Fatalf("user %q not found: %v", username, err)
	}
	return u
}

// resolveAccount finds the named account owned by the user, creating it
// when the statement is the account's first appearance.
func resolveAccount(owner models.User, name string) models.Account {
	var a models.Account
	err := db.Where("user_id = ? AND name = ?", owner.ID, name).First(&a).Error
	if err == nil {
		return a
	}
	a = models.Account{ID: uuid.NewString(), UserID: owner.ID, Name: name}
	if err := db.Create(&a).Error; err != nil {
		log.Fatalf("failed to create account %q: %v", name, err)
	}
	log.Printf("created account %q (%s)", name, a.ID)
	return a
}

// preloadExternalIDs fetches already-imported line references to
// minimize per-row queries.
func preloadExternalIDs(account models.Account) map[string]struct{} {
	seen := make(map[string]struct{}, 1024)
	var refs []string
	if err := db.Model(&models.Transaction{}).
		Where("account_id = ? AND external_id IS NOT NULL", account.ID).
		Pluck("external_id", &refs).Error; err != nil {
		log.Printf("warning: preload failed: %v", err)
	}
	for _, r := range refs {
		seen[r] = struct{}{}
	}
	return seen
}

func listStatementFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isStatementFile(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isStatementFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// importFile inserts all new rows of one statement, or none of them.
func importFile(dir, name string, owner models.User, account models.Account, seen map[string]struct{}) {
	entries, err := parseStatementFile(filepath.Join(dir, name))
	if err != nil {
		log.Printf("%s: skipped: %v", name, err)
		return
	}
	rows := make([]models.Transaction, 0, len(entries))
	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		ref := name + ":" + e.Reference
		if _, dup := seen[ref]; dup {
			logV("%s: %s already imported", name, e.Reference)
			continue
		}
		extID := ref
		rows = append(rows, models.Transaction{
			ID:         uuid.NewString(),
			Payee:      e.Payee,
			Amount:     e.Amount,
			Location:   e.Location,
			Date:       e.Date,
			AccountID:  account.ID,
			ExternalID: &extID,
		})
		refs = append(refs, ref)
	}
	if len(rows) == 0 {
		log.Printf("%s: nothing new", name)
		return
	}
	// category names become owned categories, created on first sight
	if err := attachCategories(owner, entries, rows); err != nil {
		log.Printf("%s: skipped: %v", name, err)
		return
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	}); err != nil {
		log.Printf("%s: insert failed (no rows kept): %v", name, err)
		return
	}
	for _, r := range refs {
		seen[r] = struct{}{}
	}
	log.Printf("%s: imported %d transactions", name, len(rows))
}

// attachCategories resolves the entries' category names to owned
// category rows, creating missing ones, and sets the references on the
// pending transaction rows.
func attachCategories(owner models.User, entries []statementEntry, rows []models.Transaction) error {
	byRef := make(map[string]string) // statement ref -> category id
	cache := make(map[string]string) // category name -> id
	for _, e := range entries {
		if e.Category == "" {
			continue
		}
		id, ok := cache[e.Category]
		if !ok {
			var cat models.Category
			err := db.Where("user_id = ? AND name = ?", owner.ID, e.Category).First(&cat).Error
			if err != nil {
				cat = models.Category{ID: uuid.NewString(), UserID: owner.ID, Name: e.Category}
				if err := db.Create(&cat).Error; err != nil {
					return err
				}
				logV("created category %q (%s)", cat.Name, cat.ID)
			}
			id = cat.ID
			cache[e.Category] = id
		}
		byRef[e.Reference] = id
	}
	for i := range rows {
		if rows[i].ExternalID == nil {
			continue
		}
		// strip the "file:" prefix added in importFile
		ref := *rows[i].ExternalID
		if idx := strings.IndexByte(ref, ':'); idx >= 0 {
			ref = ref[idx+1:]
		}
		if id, ok := byRef[ref]; ok {
			cid := id
			rows[i].CategoryID = &cid
		}
	}
	return nil
}

func watchDirectory(dir string, owner models.User, account models.Account, seen map[string]struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	// debounce map of pending files so half-written statements settle
	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				name := filepath.Base(ev.Name)
				if !isStatementFile(name) {
					continue
				}
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond { // stable
					delete(pending, name)
					importFile(dir, name, owner, account, seen)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

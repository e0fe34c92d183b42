package sqlexec

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func BenchmarkSplit(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(`INSERT INTO "users" ("name", "email") VALUES ('a;b', ?); -- note; here
		SELECT $$x;y$$, "c;d" FROM "users" /* ; */;`)
	}
	sql := sb.String()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if n := len(Split(sql)); n != 100 {
			b.Fatalf("got %d statements", n)
		}
	}
}

func BenchmarkExecutor_Execute(b *testing.B) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		b.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		b.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	if err := db.Exec(createUsers).Error; err != nil {
		b.Fatal(err)
	}

	exec := NewExecutor(db, zap.NewNop())
	ctx := context.Background()
	sql := `INSERT INTO "users" ("name", "email") VALUES (?, ?); SELECT * FROM "users" WHERE "id" = last_insert_rowid()`

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Execute(ctx, sql, []any{"Bench", "bench" + strconv.Itoa(i)}, ModeRun); err != nil {
			b.Fatal(err)
		}
	}
}

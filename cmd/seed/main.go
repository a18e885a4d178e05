// seed runs a sample edit history through the audited collection "test_objects" and
// prints the audits it produced. Run against a development MongoDB only.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docaudit/internal/audit"
	"docaudit/internal/audit/domain"
	auditrepo "docaudit/internal/audit/repository"
	"docaudit/internal/config"
	"docaudit/internal/db"
	"docaudit/internal/document"
	"docaudit/internal/hooks"
	"docaudit/internal/telemetry"
	otelsetup "docaudit/internal/telemetry/otel"
	"docaudit/internal/telemetry/producer"
)

const (
	seedCollection = "test_objects"
	seedUser       = "seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName + "-seed",
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	database := client.Database(cfg.MongoDatabase)

	var repo auditrepo.Repository
	var pg *sql.DB
	if cfg.AuditStore == config.AuditStorePostgres {
		if pg, err = db.OpenPostgres(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pg.Close()
		repo = auditrepo.NewPostgresRepository(pg)
	} else {
		mongoRepo := auditrepo.NewMongoRepository(database.Collection(cfg.AuditCollection))
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			log.Fatalf("audit indexes: %v", err)
		}
		repo = mongoRepo
	}

	emitters := telemetry.Emitters{otelsetup.NewRecordEmitter(providers.LoggerProvider)}
	var pub producer.Producer
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic); kp != nil {
		pub = kp
		emitters = append(emitters, pub)
	}

	users := audit.FirstOf(audit.ContextUser, audit.StaticUser(cfg.DefaultAuditUser))
	recorder := audit.NewRecorder(repo, users, emitters)
	objects := hooks.NewCollection(document.NewMongoStore(database), seedCollection,
		hooks.WithInterceptors(hooks.Audit(recorder)))

	ids, err := run(audit.WithUser(ctx, seedUser), objects)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
	if err := printAudits(ctx, repo, objects.ItemName(), ids); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}

	time.Sleep(telemetry.ShutdownDrainDuration)
	if pub != nil {
		if err := pub.Close(); err != nil {
			log.Printf("producer: close: %v", err)
		}
	}
	if err := providers.Shutdown(context.Background()); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
}

// run inserts two objects, edits them through every audited path and returns their ids.
func run(ctx context.Context, objects *hooks.Collection) ([]string, error) {
	lucky, err := objects.Save(ctx, domain.Snapshot{
		"name":   "Lucky",
		"number": 7,
		"child":  map[string]any{"name": "Kid"},
		"entity": map[string]any{"array": []any{"1", "2"}},
	}, hooks.Options{})
	if err != nil {
		return nil, fmt.Errorf("insert Lucky: %w", err)
	}
	other, err := objects.Save(ctx, domain.Snapshot{"name": "Other", "number": 1}, hooks.Options{})
	if err != nil {
		return nil, fmt.Errorf("insert Other: %w", err)
	}

	doc, err := objects.FindByID(ctx, lucky)
	if err != nil {
		return nil, fmt.Errorf("reload Lucky: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("reload Lucky: %v not found", lucky)
	}
	doc["name"] = "Unlucky"
	doc[audit.UserMarker] = "Jack"
	if _, err := objects.Save(ctx, doc, hooks.Options{}); err != nil {
		return nil, fmt.Errorf("save Unlucky: %w", err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"update child", func() error {
			return objects.UpdateOne(ctx, document.ByID(lucky), domain.Snapshot{
				"child": map[string]any{"name": "Kid", "age": 3},
			}, hooks.Options{User: "Jill"})
		}},
		{"push array", func() error {
			return objects.Update(ctx, document.ByID(lucky), domain.Snapshot{
				"$push": map[string]any{"entity.array": "3"},
			}, hooks.Options{})
		}},
		{"bump all", func() error {
			_, err := objects.UpdateMany(ctx, domain.Snapshot{}, domain.Snapshot{
				"$inc": map[string]any{"number": 1},
			}, hooks.Options{})
			return err
		}},
		{"remove Other", func() error {
			_, err := objects.FindOneAndDelete(ctx, document.ByID(other), hooks.Options{})
			return err
		}},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return []string{idString(lucky), idString(other)}, nil
}

// idString renders a stored _id the way audit records carry it.
func idString(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

func printAudits(ctx context.Context, repo auditrepo.Repository, itemName string, ids []string) error {
	for _, id := range ids {
		recs, err := repo.ListByItem(ctx, itemName, id, 0, 0)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s: %d audits\n", itemName, id, len(recs))
		for _, rec := range recs {
			changes, _ := json.Marshal(rec.Changes)
			fmt.Printf("  %s by %s: %s\n", rec.CreatedAt.Format(time.RFC3339), rec.User, changes)
		}
	}
	return nil
}

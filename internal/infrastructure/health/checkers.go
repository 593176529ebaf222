package health

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	infraDB "github.com/GX-mob/gx-service-template/internal/infrastructure/db"
)

// probeKey is read, never written; a miss is a healthy answer.
const probeKey = "health:probe"

// dbHealthChecker wraps the database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.DB.PingContext(ctx) }

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

type cacheHealthChecker struct{ backend ports.KVBackend }

func (c *cacheHealthChecker) Name() string { return "cache" }
func (c *cacheHealthChecker) Check(ctx context.Context) error {
	_, _, err := c.backend.Get(ctx, probeKey)
	return err
}

// NewCacheHealthChecker probes the cache backend with a read. Behind a
// circuit breaker an open circuit reports unhealthy.
func NewCacheHealthChecker(backend ports.KVBackend) ports.HealthChecker {
	return &cacheHealthChecker{backend: backend}
}

// TableDescriber is the part of the DynamoDB client the checker needs.
type TableDescriber interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type dynamoHealthChecker struct {
	client TableDescriber
	tables []string
}

func (d *dynamoHealthChecker) Name() string { return "dynamodb" }
func (d *dynamoHealthChecker) Check(ctx context.Context) error {
	for _, table := range d.tables {
		out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err != nil {
			return fmt.Errorf("describe %s: %w", table, err)
		}
		if out.Table == nil || out.Table.TableStatus != "ACTIVE" {
			return fmt.Errorf("table %s is not active", table)
		}
	}
	return nil
}

// NewDynamoHealthChecker requires every table to exist and be ACTIVE.
func NewDynamoHealthChecker(client TableDescriber, tables ...string) ports.HealthChecker {
	return &dynamoHealthChecker{client: client, tables: tables}
}

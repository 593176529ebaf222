package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoDocuments.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoDocuments stores one collection in its own table keyed by "id".
// Lookups by id use GetItem; any other filter scans with a filter expression.
//
// Each unique field value is claimed by a guard item with id
// "collection#field#value", written in the same transaction as the
// document, so a second claim cancels the transaction.
type DynamoDocuments struct {
	client     DynamoAPI
	table      string
	collection string
	unique     []string
	logger     *logrus.Logger
}

var _ ports.DocumentStore = (*DynamoDocuments)(nil)

func NewDynamoDocuments(client DynamoAPI, tablePrefix, collection string, logger *logrus.Logger, unique ...string) *DynamoDocuments {
	return &DynamoDocuments{
		client:     client,
		table:      tablePrefix + collection,
		collection: collection,
		unique:     append([]string(nil), unique...),
		logger:     logger,
	}
}

func (r *DynamoDocuments) Name() string { return r.collection }

// Table is the DynamoDB table holding the collection.
func (r *DynamoDocuments) Table() string { return r.table }

func (r *DynamoDocuments) FindOne(ctx context.Context, filter ports.Filter) (ports.Document, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if id, ok := idOnly(f); ok {
		out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.table),
			Key:       idKey(id),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get %s item: %w", r.collection, err)
		}
		if out.Item == nil {
			return nil, nil
		}
		return r.parse(out.Item)
	}

	cond, err := filterCondition(f)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(r.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.collection, err)
		}
		if len(out.Items) > 0 {
			return r.parse(out.Items[0])
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *DynamoDocuments) Create(ctx context.Context, data ports.Document) (ports.Document, error) {
	doc, err := normalizeDocument(data)
	if err != nil {
		return nil, err
	}
	doc["id"] = uuid.NewString()

	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s document to item: %w", r.collection, err)
	}
	absent, err := expression.NewBuilder().
		WithCondition(expression.Name("id").AttributeNotExists()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	guards := r.guardIDs(doc, r.unique)
	if len(guards) == 0 {
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(r.table),
			Item:                      item,
			ConditionExpression:       absent.Condition(),
			ExpressionAttributeNames:  absent.Names(),
			ExpressionAttributeValues: absent.Values(),
		})
	} else {
		writes := []types.TransactWriteItem{{Put: r.conditionalPut(item, absent)}}
		for _, g := range guards {
			writes = append(writes, types.TransactWriteItem{Put: r.conditionalPut(guardItem(g, doc["id"].(string)), absent)})
		}
		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	}
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		var tce *types.TransactionCanceledException
		if errors.As(err, &ccf) || errors.As(err, &tce) {
			return nil, fmt.Errorf("%s: %w", r.collection, ports.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to put %s item: %w", r.collection, err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"collection": r.collection, "id": doc["id"]}).Debug("dynamodb: document created")
	}
	return doc, nil
}

func (r *DynamoDocuments) UpdateOne(ctx context.Context, filter ports.Filter, patch ports.Document) error {
	p, err := normalizeDocument(withoutID(patch))
	if err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	if r.touchesUnique(p) {
		return r.updateClaimed(ctx, filter, p)
	}
	id, found, err := r.resolveID(ctx, filter)
	if err != nil || !found {
		return err
	}

	expr, err := updateExpression(p)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       idKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// removed between lookup and update
			return nil
		}
		return fmt.Errorf("failed to update %s item: %w", r.collection, err)
	}
	return nil
}

// updateClaimed moves the guards of changed unique values in the same
// transaction as the update.
func (r *DynamoDocuments) updateClaimed(ctx context.Context, filter ports.Filter, p ports.Document) error {
	current, err := r.FindOne(ctx, filter)
	if err != nil || current == nil {
		return err
	}
	id, _ := current["id"].(string)

	var changed []string
	for _, field := range r.unique {
		if v, ok := p[field]; ok && fmt.Sprint(v) != fmt.Sprint(current[field]) {
			changed = append(changed, field)
		}
	}

	expr, err := updateExpression(p)
	if err != nil {
		return err
	}
	absent, err := expression.NewBuilder().
		WithCondition(expression.Name("id").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	writes := []types.TransactWriteItem{{Update: &types.Update{
		TableName:                 aws.String(r.table),
		Key:                       idKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}}
	for _, g := range r.guardIDs(p, changed) {
		writes = append(writes, types.TransactWriteItem{Put: r.conditionalPut(guardItem(g, id), absent)})
	}
	for _, g := range r.guardIDs(current, changed) {
		writes = append(writes, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.table),
			Key:       idKey(g),
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	var tce *types.TransactionCanceledException
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tce):
		if len(tce.CancellationReasons) > 0 && aws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			// removed between lookup and update
			return nil
		}
		return fmt.Errorf("%s: %w", r.collection, ports.ErrDuplicate)
	default:
		return fmt.Errorf("failed to update %s item: %w", r.collection, err)
	}
}

func (r *DynamoDocuments) DeleteOne(ctx context.Context, filter ports.Filter) error {
	if len(r.unique) > 0 {
		return r.deleteClaimed(ctx, filter)
	}
	id, found, err := r.resolveID(ctx, filter)
	if err != nil || !found {
		return err
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       idKey(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s item: %w", r.collection, err)
	}
	return nil
}

// deleteClaimed releases the document's guards together with the document.
func (r *DynamoDocuments) deleteClaimed(ctx context.Context, filter ports.Filter) error {
	current, err := r.FindOne(ctx, filter)
	if err != nil || current == nil {
		return err
	}
	id, _ := current["id"].(string)

	writes := []types.TransactWriteItem{{Delete: &types.Delete{TableName: aws.String(r.table), Key: idKey(id)}}}
	for _, g := range r.guardIDs(current, r.unique) {
		writes = append(writes, types.TransactWriteItem{Delete: &types.Delete{TableName: aws.String(r.table), Key: idKey(g)}})
	}
	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		return fmt.Errorf("failed to delete %s item: %w", r.collection, err)
	}
	return nil
}

func (r *DynamoDocuments) touchesUnique(p ports.Document) bool {
	for _, field := range r.unique {
		if _, ok := p[field]; ok {
			return true
		}
	}
	return false
}

// guardIDs lists the guard ids of doc's non-empty values for fields.
func (r *DynamoDocuments) guardIDs(doc ports.Document, fields []string) []string {
	var ids []string
	for _, field := range fields {
		v, ok := doc[field]
		if !ok || v == nil || v == "" {
			continue
		}
		ids = append(ids, fmt.Sprintf("%s#%s#%v", r.collection, field, v))
	}
	return ids
}

func (r *DynamoDocuments) conditionalPut(item map[string]types.AttributeValue, cond expression.Expression) *types.Put {
	return &types.Put{
		TableName:                 aws.String(r.table),
		Item:                      item,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	}
}

func guardItem(guardID, owner string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: guardID},
		"owner": &types.AttributeValueMemberS{Value: owner},
	}
}

func updateExpression(p ports.Document) (expression.Expression, error) {
	var update expression.UpdateBuilder
	for _, k := range sortedKeys(p) {
		update = update.Set(expression.Name(k), expression.Value(p[k]))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("id").AttributeExists()).
		Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build expression: %w", err)
	}
	return expr, nil
}

func (r *DynamoDocuments) resolveID(ctx context.Context, filter ports.Filter) (string, bool, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return "", false, err
	}
	if id, ok := idOnly(f); ok {
		return id, true, nil
	}
	doc, err := r.FindOne(ctx, filter)
	if err != nil || doc == nil {
		return "", false, err
	}
	id, ok := doc["id"].(string)
	return id, ok, nil
}

func (r *DynamoDocuments) parse(item map[string]types.AttributeValue) (ports.Document, error) {
	var doc ports.Document
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s item: %w", r.collection, err)
	}
	return doc, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func idOnly(f ports.Filter) (string, bool) {
	if len(f) != 1 {
		return "", false
	}
	id, ok := f["id"].(string)
	return id, ok
}

func filterCondition(f ports.Filter) (expression.ConditionBuilder, error) {
	keys := sortedKeys(ports.Document(f))
	if len(keys) == 0 {
		return expression.ConditionBuilder{}, fmt.Errorf("empty filter")
	}
	cond := expression.Name(keys[0]).Equal(expression.Value(f[keys[0]]))
	for _, k := range keys[1:] {
		cond = cond.And(expression.Name(k).Equal(expression.Value(f[k])))
	}
	return cond, nil
}

// normalizeDocument converts values to their JSON form (ids and times become
// strings) so they marshal to plain DynamoDB attributes.
func normalizeDocument(doc ports.Document) (ports.Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out ports.Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if out == nil {
		out = ports.Document{}
	}
	return out, nil
}

func normalizeFilter(filter ports.Filter) (ports.Filter, error) {
	doc, err := normalizeDocument(ports.Document(filter))
	return ports.Filter(doc), err
}

func sortedKeys(doc ports.Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

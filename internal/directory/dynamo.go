package directory

import (
	"context"
	"strings"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDirectory reads tenant records and team members from the
// control-plane tables.
type DynamoDirectory struct {
	db *database.Database
}

func NewDynamoDirectory(db *database.Database) *DynamoDirectory {
	return &DynamoDirectory{db: db}
}

func (d *DynamoDirectory) GetTenantRecord(ctx context.Context, tenantID string) (model.TenantRecord, error) {
	var tenant model.TenantRecord
	err := d.db.Client.GetItem(
		ctx,
		model.TenantsTable,
		map[string]types.AttributeValue{
			"tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
		&tenant,
	)
	if err != nil {
		if isNotFound(err) {
			return model.TenantRecord{}, ErrTenantNotFound
		}
		return model.TenantRecord{}, err
	}
	return tenant, nil
}

func (d *DynamoDirectory) ListMembers(ctx context.Context, tenantID string) ([]model.MemberItem, error) {
	items, err := d.db.Client.QueryItems(
		ctx,
		model.MembersTable,
		aws.String("byTenant"),
		"tenantId = :tenantId",
		map[string]types.AttributeValue{
			":tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}

	members := make([]model.MemberItem, 0, len(items))
	for _, item := range items {
		var member model.MemberItem
		if err := attributevalue.UnmarshalMap(item, &member); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

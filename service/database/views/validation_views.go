/*
 * @module service/database/views/validation_views
 * @description 验证结果相关数据库视图定义
 * @architecture 数据访问层 - 视图
 * @documentReference dev_docs/model.md
 * @stateFlow 迁移时创建，API查询层只读消费
 * @rules 视图SQL保持方言中立，postgres与sqlite均可执行
 * @dependencies 无
 * @refs service/database/migrate.go
 */

package views

// ValidationViews 验证结果视图，键为视图名
var ValidationViews = map[string]string{
	// 每个资源最近一次验证的结果摘要
	"latest_validations": `
		CREATE VIEW latest_validations AS
		SELECT vr.id,
		       vr.resource_id,
		       r.dataset_id,
		       r.datagouv_id,
		       vr.max_severity,
		       vr.validated_at
		FROM validation_records vr
		JOIN resources r ON r.id = vr.resource_id
		JOIN (
			SELECT resource_id, MAX(validated_at) AS latest_at
			FROM validation_records
			GROUP BY resource_id
		) latest ON latest.resource_id = vr.resource_id AND latest.latest_at = vr.validated_at`,
}

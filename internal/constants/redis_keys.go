package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "prosterio"

	// AnalyticsModulePrefix 统计模块
	AnalyticsModulePrefix = "analytics"

	// EntityGeneration 缓存代数实体
	EntityGeneration = "gen"
	// EntitySnapshot 统计快照实体
	EntitySnapshot = "snapshot"

	// KeyAnalyticsGeneration 统计缓存代数 (STRING, INCR)
	// 员工数据任何写入都会递增它，使旧快照自然失效
	// 格式: prosterio:analytics:gen
	KeyAnalyticsGeneration = AppPrefix + ":" + AnalyticsModulePrefix + ":" + EntityGeneration

	// KeyAnalyticsSnapshot 统计结果快照 (STRING, JSON)
	// 格式: prosterio:analytics:snapshot:{generation}:{report}:{userID}
	KeyAnalyticsSnapshot = AppPrefix + ":" + AnalyticsModulePrefix + ":" + EntitySnapshot + ":%d:%s:%d"
)

// 员工事件的 routing key，同时作为 outbox 的 event_type
const (
	EventEmployeeUpserted = "employee.upserted"
	EventEmployeeResigned = "employee.resigned"
	EventEmployeeDeleted  = "employee.deleted"
)

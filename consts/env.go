package consts

const (
	EnvPrefix = "TCPMUX"

	Env            = "TCPMUX_ENV"              // test 环境下日志切到 development
	Host           = "TCPMUX_HOST"             // 客户端连接的主机
	Port           = "TCPMUX_PORT"             // 端口
	Workers        = "TCPMUX_WORKERS"          // reactor 数量，共用一个端口
	MaxEvents      = "TCPMUX_MAX_EVENTS"       // 单次 poll 返回的最大事件数
	ReadBufferSize = "TCPMUX_READ_BUFFER"      // echo handler 读缓冲大小
	LogLevel       = "TCPMUX_LOG_LEVEL"        // 日志级别
	ConfigFile     = "TCPMUX_CONFIG"           // 配置文件路径
	MetricsAddr    = "TCPMUX_METRICS_ADDR"     // prometheus 抓取地址
	MetricsPushURL = "TCPMUX_METRICS_PUSH_URL" // pushgateway 地址
)

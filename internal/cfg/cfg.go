package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
)

type Config struct {
	Db        *PGDBCfg
	Redis     *RedisCfg
	Qdrant    *QdrantCfg
	Minio     *MinIOCfg
	Kafka     *KafkaCfg
	Embedding *EmbeddingCfg
	Vision    *VisionCfg
	Breaker   *BreakerCfg
	Cache     *CacheCfg
	Pricing   *PricingCfg
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	SettingsTTL time.Duration // свежесть read-through кэша настроек тенанта
}

type QdrantCfg struct {
	Port              int
	Host              string
	ApiKey            string
	ListingCollection string // коллекция векторов активных изображений
	SalesCollection   string // коллекция векторов проданных товаров
	UseTLS            bool
	VectorSize        uint64
}

type MinIOCfg struct {
	MinioEndpoint     string
	BucketName        string
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// ProviderCfg — один провайдер эмбеддингов в fallback-цепочке.
// Tag — явный дискриминатор формата ответа, а не эвристика по полям.
type ProviderCfg struct {
	Tag      string
	Endpoint string
	ModelID  string
}

type EmbeddingCfg struct {
	Providers        []ProviderCfg // в порядке убывания приоритета
	BatchSize        int           // жёсткий потолок сервиса на размер батча
	MaxConcurrent    int           // одновременные вызовы чанков в волне
	MaxRetries       int
	MaxImageBytes    int64
	MaxResponseBytes int64
	ChunkTimeout     time.Duration
	ItemTimeout      time.Duration
	VectorSize       int
}

type VisionCfg struct {
	LabelEndpoint      string
	QualityEndpoint    string
	MinLabelConfidence float64
	MaxResponseBytes   int64
	RequestTimeout     time.Duration
}

type BreakerCfg struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

type CacheCfg struct {
	BudgetBytes int64
	DefaultTTL  time.Duration
}

type PricingCfg struct {
	DefaultBasePrice float64
	ResultLimit      int
	MinSimilarity    float64
	BaseCurrency     string
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	// .env подхватывается при наличии, в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embedding, err := loadEmbeddingCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	vision, err := loadVisionCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	breaker, err := loadBreakerCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cache, err := loadCacheCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	pricing, err := loadPricingCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Db:        db,
		Redis:     redis,
		Qdrant:    qdrant,
		Minio:     minio,
		Kafka:     kafka,
		Embedding: embedding,
		Vision:    vision,
		Breaker:   breaker,
		Cache:     cache,
		Pricing:   pricing,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr        = "localhost:6379"
		defaultDB          = 0
		defaultMaxRetries  = 3
		defaultDialTimeout = 5 * time.Second
		defaultTimeout     = 3 * time.Second
		defaultSettingsTTL = 5 * time.Minute
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	timeout, err := parseDurationEnv("REDIS_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_TIMEOUT")
		return nil, err
	}

	settingsTTL, err := parseDurationEnv("SETTINGS_TTL", defaultSettingsTTL)
	if err != nil {
		log.Errorf(err, "invalid SETTINGS_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		SettingsTTL: settingsTTL,
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "1024"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	listing := getEnv("LISTING_COLLECTION_NAME")
	if listing == "" {
		return nil, fmt.Errorf("LISTING_COLLECTION_NAME is required")
	}

	sales := getEnv("SALES_COLLECTION_NAME")
	if sales == "" {
		return nil, fmt.Errorf("SALES_COLLECTION_NAME is required")
	}

	return &QdrantCfg{
		Host:              getEnv("QDRANT_HOST"),
		Port:              port,
		ApiKey:            getEnv("QDRANT__SERVICE__API_KEY"),
		ListingCollection: listing,
		SalesCollection:   sales,
		UseTLS:            useTLS,
		VectorSize:        vectorSize,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	bucket := getEnv("BUCKET_NAME")
	if bucket == "" {
		// отсутствие бакета с изображениями — фатальная ошибка конфигурации:
		// без него невозможно получать байты изображений по ключу
		return nil, e.Wrap("BUCKET_NAME is required", e.Config("missing object store location"))
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadEmbeddingCfg() (*EmbeddingCfg, error) {
	const (
		defaultBatchSize        = 25
		defaultMaxConcurrent    = 4
		defaultMaxRetries       = 3
		defaultMaxImageBytes    = 5 << 20  // 5 MiB
		defaultMaxResponseBytes = 16 << 20 // 16 MiB
		defaultChunkTimeout     = 30 * time.Second
		defaultItemTimeout      = 10 * time.Second
		defaultVectorSize       = 1024
	)

	primaryTag := getEnv("EMBEDDING_PROVIDER")
	primaryEndpoint := getEnv("EMBEDDING_ENDPOINT")
	if primaryTag == "" || primaryEndpoint == "" {
		return nil, fmt.Errorf("EMBEDDING_PROVIDER and EMBEDDING_ENDPOINT are required")
	}

	providers := []ProviderCfg{{
		Tag:      primaryTag,
		Endpoint: primaryEndpoint,
		ModelID:  getEnvOrDefault("EMBEDDING_MODEL_ID", "titan-multimodal-v1"),
	}}

	// запасной провайдер опционален
	if tag := getEnv("EMBEDDING_FALLBACK_PROVIDER"); tag != "" {
		endpoint := getEnv("EMBEDDING_FALLBACK_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("EMBEDDING_FALLBACK_ENDPOINT is required when EMBEDDING_FALLBACK_PROVIDER is set")
		}
		providers = append(providers, ProviderCfg{
			Tag:      tag,
			Endpoint: endpoint,
			ModelID:  getEnvOrDefault("EMBEDDING_FALLBACK_MODEL_ID", tag),
		})
	}

	batchSize, err := parseIntEnv("EMBEDDING_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		return nil, e.Wrap("EMBEDDING_BATCH_SIZE", err)
	}

	maxConcurrent, err := parseIntEnv("EMBEDDING_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("EMBEDDING_MAX_CONCURRENT", err)
	}

	maxRetries, err := parseIntEnv("EMBEDDING_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("EMBEDDING_MAX_RETRIES", err)
	}

	chunkTimeout, err := parseDurationEnv("EMBEDDING_CHUNK_TIMEOUT", defaultChunkTimeout)
	if err != nil {
		return nil, e.Wrap("EMBEDDING_CHUNK_TIMEOUT", err)
	}

	itemTimeout, err := parseDurationEnv("EMBEDDING_ITEM_TIMEOUT", defaultItemTimeout)
	if err != nil {
		return nil, e.Wrap("EMBEDDING_ITEM_TIMEOUT", err)
	}

	vectorSize, err := parseIntEnv("VECTOR_SIZE", defaultVectorSize)
	if err != nil {
		return nil, e.Wrap("VECTOR_SIZE", err)
	}

	return &EmbeddingCfg{
		Providers:        providers,
		BatchSize:        batchSize,
		MaxConcurrent:    maxConcurrent,
		MaxRetries:       maxRetries,
		MaxImageBytes:    defaultMaxImageBytes,
		MaxResponseBytes: defaultMaxResponseBytes,
		ChunkTimeout:     chunkTimeout,
		ItemTimeout:      itemTimeout,
		VectorSize:       vectorSize,
	}, nil
}

func loadVisionCfg() (*VisionCfg, error) {
	const (
		defaultMinLabelConfidence = "0.5"
		defaultMaxResponseBytes   = 1 << 20
		defaultRequestTimeout     = 10 * time.Second
	)

	minConfidence, err := strconv.ParseFloat(getEnvOrDefault("MIN_LABEL_CONFIDENCE", defaultMinLabelConfidence), 64)
	if err != nil {
		return nil, e.Wrap("MIN_LABEL_CONFIDENCE", e.ErrIncorrectEnvVariable)
	}

	timeout, err := parseDurationEnv("VISION_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return nil, e.Wrap("VISION_REQUEST_TIMEOUT", err)
	}

	return &VisionCfg{
		LabelEndpoint:      getEnv("LABEL_ENDPOINT"),
		QualityEndpoint:    getEnv("QUALITY_ENDPOINT"),
		MinLabelConfidence: minConfidence,
		MaxResponseBytes:   defaultMaxResponseBytes,
		RequestTimeout:     timeout,
	}, nil
}

func loadBreakerCfg() (*BreakerCfg, error) {
	const (
		defaultFailureThreshold = 5
		defaultSuccessThreshold = 2
		defaultCooldown         = 30 * time.Second
	)

	failureThreshold, err := parseIntEnv("BREAKER_FAILURE_THRESHOLD", defaultFailureThreshold)
	if err != nil {
		return nil, e.Wrap("BREAKER_FAILURE_THRESHOLD", err)
	}

	successThreshold, err := parseIntEnv("BREAKER_SUCCESS_THRESHOLD", defaultSuccessThreshold)
	if err != nil {
		return nil, e.Wrap("BREAKER_SUCCESS_THRESHOLD", err)
	}

	cooldown, err := parseDurationEnv("BREAKER_COOLDOWN", defaultCooldown)
	if err != nil {
		return nil, e.Wrap("BREAKER_COOLDOWN", err)
	}

	return &BreakerCfg{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
		Cooldown:         cooldown,
	}, nil
}

func loadCacheCfg() (*CacheCfg, error) {
	const (
		defaultBudgetMB = 64
		defaultTTL      = 30 * time.Minute
	)

	budgetMB, err := parseIntEnv("CACHE_BUDGET_MB", defaultBudgetMB)
	if err != nil {
		return nil, e.Wrap("CACHE_BUDGET_MB", err)
	}

	ttl, err := parseDurationEnv("CACHE_DEFAULT_TTL", defaultTTL)
	if err != nil {
		return nil, e.Wrap("CACHE_DEFAULT_TTL", err)
	}

	return &CacheCfg{
		BudgetBytes: int64(budgetMB) << 20,
		DefaultTTL:  ttl,
	}, nil
}

func loadPricingCfg() (*PricingCfg, error) {
	const (
		defaultBasePrice     = "25.00"
		defaultResultLimit   = 20
		defaultMinSimilarity = "0.7"
		defaultBaseCurrency  = "USD"
	)

	basePrice, err := strconv.ParseFloat(getEnvOrDefault("PRICING_DEFAULT_BASE_PRICE", defaultBasePrice), 64)
	if err != nil {
		return nil, e.Wrap("PRICING_DEFAULT_BASE_PRICE", e.ErrIncorrectEnvVariable)
	}

	resultLimit, err := parseIntEnv("PRICING_RESULT_LIMIT", defaultResultLimit)
	if err != nil {
		return nil, e.Wrap("PRICING_RESULT_LIMIT", err)
	}

	minSimilarity, err := strconv.ParseFloat(getEnvOrDefault("PRICING_MIN_SIMILARITY", defaultMinSimilarity), 64)
	if err != nil {
		return nil, e.Wrap("PRICING_MIN_SIMILARITY", e.ErrIncorrectEnvVariable)
	}

	return &PricingCfg{
		DefaultBasePrice: basePrice,
		ResultLimit:      resultLimit,
		MinSimilarity:    minSimilarity,
		BaseCurrency:     getEnvOrDefault("PRICING_BASE_CURRENCY", defaultBaseCurrency),
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

package models

// Config 構造体はデータベース接続とサーバーの設定情報を保持します。
type Config struct {
	DBHost      string `json:"db_host"`
	DBUser      string `json:"db_user"`
	DBPassword  string `json:"db_password"`
	DBName      string `json:"db_name"`
	DBSSLMode   string `json:"db_sslmode"`
	AllowOrigin string `json:"allow_origin"` // CORSで許可するオリジン
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fyerfyer/pdf-rag/config"
)

// envFile 启动时尝试加载的环境变量文件
const envFile = ".env"

// addConfigFlag 为命令添加 --config 参数
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (default ./config.yaml if present)")
}

// loadConfig 加载 .env、配置文件和环境变量，并绑定命令行参数
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}

	path, _ := cmd.Flags().GetString("config")
	return config.LoadWithViper(v, path)
}

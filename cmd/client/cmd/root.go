package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/app/client"
	"plantkeeper/internal/app/client/config"
	"plantkeeper/internal/utils/logger"
)

var (
	cfgFile   string
	cfg       *config.Config
	log       *slog.Logger
	app       *client.App
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "plantkeeper",
	Short: "PlantKeeper - уход за комнатными растениями",
	Long: `PlantKeeper хранит ваши растения и места, где они стоят,
напоминает о поливе и подкормке.

Работает и без сети: изменения сохраняются локально и отправляются
на сервер, как только связь появится.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		types.Fail("Ошибка: %v", err)
		stop()
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	env := cfg.Env
	if debug {
		env = "local"
	}

	// Логи клиента пишутся в файл, чтобы не мешать выводу команд
	log = logger.NewFile(env, cfg.LogPath)

	app, err = client.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(types.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func loadConfig() (*config.Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	return config.Load(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "подробные логи")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера PlantKeeper (host:port)")

	// Команды добавляются в init.go
}

package entry

import (
	"github.com/spf13/cobra"
)

// EntryCmd - родительская команда для всех операций с записями
var EntryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Управление записями",
	Long:  `Создание, просмотр и удаление записей в локальном хранилище устройства.`,
}

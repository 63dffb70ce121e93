package entry

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifelog/cmd/client/cmd/cmdutil"
)

var DeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить запись локально",
	Long: `Удаляет запись из локального хранилища устройства.

Удаление не передается на сервер: запись остается там и на других
устройствах, но на этом устройстве последующие синхронизации ее не вернут.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		id, err := cmdutil.ParseID(args[0])
		if err != nil {
			return err
		}

		if err := app.DeleteEntry(cmd.Context(), id); err != nil {
			return fmt.Errorf("ошибка удаления записи: %w", err)
		}

		fmt.Printf("✓ Запись %s удалена\n", id)
		return nil
	},
}

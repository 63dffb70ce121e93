package entry

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"lifelog/cmd/client/cmd/cmdutil"
)

var ReceiveCmd = &cobra.Command{
	Use:   "receive [file]",
	Short: "Принять записи от соседнего устройства",
	Long: `Принимает записи, переданные с другого устройства (например, выгрузку
с часов), и ставит их в очередь на синхронизацию. Формат: JSON-массив
записей, одиночный объект или поток объектов. Без аргумента читается stdin.

Записи, удаленные на этом устройстве, повторно не появляются.

Примеры:
  lifelog entry receive watch-export.json
  cat watch-export.json | lifelog entry receive`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("ошибка открытия файла: %w", err)
			}
			defer f.Close()
			in = f
		}

		n, err := app.ReceiveFromPeer(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("прием прерван после %d записей: %w", n, err)
		}

		fmt.Printf("✓ Принято записей: %d\n", n)
		return nil
	},
}

package rig

import (
	"dualsight/internal/config"
)

// Config は現在の設定のコピーを返す
func (r *Rig) Config() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// UpdateStore は保存設定を検証して反映する
//
// 不正な項目は既定値に戻り、その内容を返す。
func (r *Rig) UpdateStore(store config.StoreConfig) []config.Notice {
	r.mu.RLock()
	store.Quality = r.cfg.Store.Quality // JPEG品質は起動時のみ
	r.mu.RUnlock()

	notices := r.validator.ApplyStore(&store)
	r.logNotices(notices)

	r.mu.Lock()
	r.cfg.Store = store
	r.mu.Unlock()

	r.saveConfig()
	r.logger.Info().
		Str("path", store.Path).
		Bool("save_visible", store.SaveVisible.Value).
		Bool("save_infrared", store.SaveInfrared.Value).
		Bool("save_temperature", store.SaveTemperature.Value).
		Msg("保存設定を更新しました")
	return notices
}

// ResetConfig はカメラと保存の設定を既定値に戻して保存する
func (r *Rig) ResetConfig() config.Config {
	def := config.Default()

	r.mu.Lock()
	def.Store.Quality = r.cfg.Store.Quality
	r.cfg.Visible = def.Visible
	r.cfg.Infrared = def.Infrared
	r.cfg.Store = def.Store
	cfg := r.cfg
	r.mu.Unlock()

	r.saveConfig()
	r.logger.Warn().Msg("設定を既定値に戻しました")
	return cfg
}

// saveConfig は設定ファイルが指定されていれば書き出す
func (r *Rig) saveConfig() {
	if r.configPath == "" {
		return
	}

	cfg := r.Config()
	if err := cfg.Save(r.configPath); err != nil {
		r.logger.Error().Err(err).Str("path", r.configPath).Msg("設定の保存に失敗")
	}
}

func (r *Rig) logNotices(notices []config.Notice) {
	for _, n := range notices {
		r.logger.Warn().Str("field", n.Field).Str("reason", n.Reason).Interface("default", n.Default).Msg("不正な値を既定値に戻しました")
	}
}
